// Package config loads pioneer.cfg.json through viper and maps it onto the
// configuration types of the runtime packages.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/pioneer-egui/timeline/internal/dispatcher"
	"github.com/pioneer-egui/timeline/internal/frame"
	"github.com/pioneer-egui/timeline/internal/influx"
	"github.com/pioneer-egui/timeline/internal/ingest"
	"github.com/pioneer-egui/timeline/internal/monitor"
	"github.com/pioneer-egui/timeline/internal/otel"
)

// FileName is the config file looked up in the config dir.
const FileName = "pioneer.cfg.json"

// ScriptConfig holds scripting host settings.
type ScriptConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// Load sets defaults and reads FileName from configDir. A missing file is
// not an error: found reports whether one was read.
func Load(configDir string) (found bool, err error) {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pioneerlogs")

	viper.SetDefault("ingest.address", ingest.DefaultAddress)
	viper.SetDefault("ingest.welcome", ingest.DefaultWelcome)
	viper.SetDefault("ingest.acceptBackoff", ingest.DefaultAcceptBackoff.String())

	viper.SetDefault("frame.minInterval", frame.DefaultMinInterval.String())

	viper.SetDefault("playback.recordReplayed", false)

	viper.SetDefault("script.path", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "pioneer")
	viper.SetDefault("influx.bucket", monitor.DefaultBucket)
	viper.SetDefault("influx.flushInterval", "1s")
	viper.SetDefault("influx.retentionDays", 30)

	viper.SetDefault("monitor.interval", "10s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", otel.DefaultServiceName)
	viper.SetDefault("otel.batchTimeout", otel.DefaultBatchTimeout.String())
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("error reading config file: %w", err)
	}
	return true, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetIngestConfig returns the websocket listener settings.
func GetIngestConfig() ingest.Config {
	return ingest.Config{
		Address:       viper.GetString("ingest.address"),
		Welcome:       viper.GetString("ingest.welcome"),
		AcceptBackoff: viper.GetDuration("ingest.acceptBackoff"),
	}
}

// GetFrameConfig returns the frame loop settings.
func GetFrameConfig() frame.Config {
	return frame.Config{MinInterval: viper.GetDuration("frame.minInterval")}
}

// GetPlaybackConfig returns the dispatcher settings. The clock is left to
// the dispatcher default.
func GetPlaybackConfig() dispatcher.Config {
	return dispatcher.Config{RecordReplayed: viper.GetBool("playback.recordReplayed")}
}

// GetScriptConfig returns the scripting host settings.
func GetScriptConfig() ScriptConfig {
	return ScriptConfig{Path: viper.GetString("script.path")}
}

// GetInfluxConfig returns the InfluxDB connection settings.
func GetInfluxConfig() influx.Config {
	return influx.Config{
		Enabled:       viper.GetBool("influx.enabled"),
		Protocol:      viper.GetString("influx.protocol"),
		Host:          viper.GetString("influx.host"),
		Port:          viper.GetString("influx.port"),
		Token:         viper.GetString("influx.token"),
		Org:           viper.GetString("influx.org"),
		Bucket:        viper.GetString("influx.bucket"),
		FlushInterval: viper.GetDuration("influx.flushInterval"),
		RetentionDays: viper.GetInt("influx.retentionDays"),
	}
}

// GetMonitorConfig returns the monitor settings; its bucket follows
// influx.bucket.
func GetMonitorConfig() monitor.Config {
	return monitor.Config{
		Interval: viper.GetDuration("monitor.interval"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OTel settings without a log writer.
func GetOTelConfig() otel.Config {
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
