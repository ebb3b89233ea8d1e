package main

import (
	"log/slog"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"

	"github.com/smazurov/airradio/cmd"
	"github.com/smazurov/airradio/internal/config"
	"github.com/smazurov/airradio/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Platform settings
	PlatformFile string `help:"Platform definition file (toml, yaml or json)" default:"platform.toml" toml:"platform.file" env:"PLATFORM_FILE"`
	StateDir     string `help:"Directory for persisted playback state" default:"state" toml:"platform.state_dir" env:"PLATFORM_STATE_DIR"`

	// Supervisor settings
	StreamCommand     string `help:"Streaming executable and leading arguments" default:"python3 bin/stream.py" toml:"supervisor.stream_command" env:"SUPERVISOR_STREAM_COMMAND"`
	ControlCommand    string `help:"Control tool for title and volume" default:"atvremote" toml:"supervisor.control_command" env:"SUPERVISOR_CONTROL_COMMAND"`
	StreamTimeout     int    `help:"Upstream read timeout in seconds" default:"5" toml:"supervisor.stream_timeout" env:"SUPERVISOR_STREAM_TIMEOUT"`
	HeartbeatInterval string `help:"Watchdog tick interval" default:"5s" toml:"supervisor.heartbeat_interval" env:"SUPERVISOR_HEARTBEAT_INTERVAL"`
	LastSeenThreshold string `help:"Silence before the device is queried" default:"5s" toml:"supervisor.last_seen_threshold" env:"SUPERVISOR_LAST_SEEN_THRESHOLD"`
	RestartDelay      string `help:"Delay before a restart" default:"500ms" toml:"supervisor.restart_delay" env:"SUPERVISOR_RESTART_DELAY"`
	MaxRetries        int    `help:"Restarts without activity before giving up" default:"5" toml:"supervisor.max_retries" env:"SUPERVISOR_MAX_RETRIES"`
	PlaceholderTitle  string `help:"Title reported while the streaming tool holds the device" default:"Streaming with pyatv" toml:"supervisor.placeholder_title" env:"SUPERVISOR_PLACEHOLDER_TITLE"`
	ValidateTimeout   string `help:"Timeout of radio URL validation" default:"10s" toml:"supervisor.validate_timeout" env:"SUPERVISOR_VALIDATE_TIMEOUT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"features.metrics_enabled" env:"FEATURES_METRICS"`
	SystemdNotify  bool `help:"Send sd_notify readiness and watchdog pings" default:"true" toml:"features.systemd_notify" env:"FEATURES_SYSTEMD_NOTIFY"`

	// Logging settings; per-module levels live in the [logging] table.
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file")
	}

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		var svc *service

		hooks.OnStart(func() {
			var err error
			svc, err = newService(opts)
			if err != nil {
				logging.GetLogger("main").Error("Failed to build service", "error", err)
				exit(1)
			}
			svc.run()
		})

		hooks.OnStop(func() {
			if svc != nil {
				svc.shutdown()
			}
		})
	})

	cli.Root().Use = "airradio"
	cli.Root().Short = "Supervised AirPlay radio streaming"

	cli.Root().AddCommand(cmd.CreatePlayCmd())
	cli.Root().AddCommand(cmd.CreateVolumeCmd())
	cli.Root().AddCommand(cmd.CreateTitleCmd())
	cli.Root().AddCommand(cmd.CreateValidateCmd())

	// Run the CLI
	cli.Run()
}
