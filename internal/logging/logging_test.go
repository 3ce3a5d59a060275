package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			appName: "pioneer",
			want:    filepath.Join("logs", "pioneer.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			appName: "pioneer",
			want:    filepath.Join(".", "logs", "pioneer.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "pioneer"),
			appName: "pioneer",
			want:    filepath.Join("/var", "log", "pioneer", "pioneer.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, tt.appName, sessionStart))
		})
	}
}

func TestLogFilePath_ConvertsToUTC(t *testing.T) {
	local := time.Date(2026, 2, 12, 23, 38, 36, 0, time.FixedZone("EET", 2*60*60))
	assert.Equal(t, filepath.Join("logs", "pioneer.20260212_213836.log"), LogFilePath("logs", "pioneer", local))
}

func TestOpenLogFile_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	f, err := OpenLogFile(dir, "pioneer", start)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(LogFilePath(dir, "pioneer", start))
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
