package ingest

import (
	"errors"
	"log/slog"
	"net"
	"time"
)

// retryListener keeps accepting after transient errors. Only a closed
// listener or shutdown ends Accept.
type retryListener struct {
	net.Listener
	backoff time.Duration
	logger  *slog.Logger
	done    <-chan struct{}
}

func (l *retryListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}

		l.logger.Warn("Accept failed, retrying", "error", err, "backoff", l.backoff)

		timer := time.NewTimer(l.backoff)
		select {
		case <-l.done:
			timer.Stop()
			return nil, net.ErrClosed
		case <-timer.C:
		}
	}
}
