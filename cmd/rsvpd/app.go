package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"pkt.systems/rsvpd"
	"pkt.systems/rsvpd/internal/svcfields"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("RSVPD_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "rsvpd")
	cmd := newRootCommand(baseLogger)
	ctx = withSignalCancel(ctx)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if err != context.Canceled {
			svcfields.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
		}
		return 1
	}
	return 0
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	var cfg rsvpd.Config
	cmd := &cobra.Command{
		Use:           "rsvpd",
		Short:         "rsvpd arbitrates exclusive, time-bounded reservations of lab hosts and resources",
		SilenceErrors: true,
		Example: `
  # Default listener on :1752, state in ./hosts.state
  rsvpd

  # Production-ish invocation
  rsvpd --listen :1752 --state-file /var/lib/rsvpd/hosts.state --metrics-listen :9090

  # Disable liveness probing (resource-only deployments)
  RSVPD_PING_DELAY=0 rsvpd
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := baseLogger
			cliLogger := svcfields.WithSubsystem(logger, "cli.root")
			ctx := cmd.Context()
			cmd.SilenceUsage = true

			configFile, err := loadConfigFile()
			if err != nil {
				return err
			}
			if configFile != "" {
				cliLogger.Info("loaded config file", "path", configFile)
			}

			bindConfig(&cfg)
			logLevel := strings.TrimSpace(viper.GetString("log-level"))
			if logLevel == "" {
				logLevel = rsvpd.DefaultLogLevel
			}
			if level, ok := pslog.ParseLevel(logLevel); ok {
				logger = logger.LogLevel(level)
				cliLogger = svcfields.WithSubsystem(logger, "cli.root")
			}

			server, err := rsvpd.NewServer(cfg, rsvpd.WithLogger(logger))
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					cliLogger.Error("shutdown failed", "error", err)
				}
			}()
			return server.Start()
		},
	}

	flags := cmd.Flags()
	cmd.PersistentFlags().StringP("config", "c", "", "path to YAML config file")
	flags.String("listen", rsvpd.DefaultListen, "listen address")
	flags.String("state-file", rsvpd.DefaultStateFile, "state file path (rewritten atomically after every mutation)")
	flags.Duration("ping-delay", rsvpd.DefaultPingDelay, "pause between liveness probe cycles (0 disables probing)")
	flags.Duration("dead-time", rsvpd.DefaultDeadTime, "silence threshold before a host is marked dead")
	flags.Duration("probe-window", rsvpd.DefaultProbeWindow, "how long one probe cycle waits for answers")
	flags.Int("probe-port", rsvpd.DefaultProbePort, "TCP port dialed to decide liveness")
	flags.Bool("notify-expired", true, "notify holders of expired reservations")
	flags.Duration("notify-interval", rsvpd.DefaultNotifyInterval, "rate limit between repeat expiry notifications per host")
	flags.String("mail-from", rsvpd.DefaultMailFrom, "sender address on first-expiry mail")
	flags.String("metrics-listen", rsvpd.DefaultMetricsListen, "metrics listen address (Prometheus scrape endpoint; empty disables)")
	flags.String("log-level", rsvpd.DefaultLogLevel, "log level (trace, debug, info, warn, error)")

	lookup := func(name string) *pflag.Flag {
		if f := flags.Lookup(name); f != nil {
			return f
		}
		return cmd.PersistentFlags().Lookup(name)
	}
	bindFlag := func(name string) {
		flag := lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("RSVPD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{
		"config",
		"listen", "state-file", "ping-delay", "dead-time", "probe-window", "probe-port",
		"notify-expired", "notify-interval", "mail-from", "metrics-listen", "log-level",
	} {
		bindFlag(name)
	}

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func bindConfig(cfg *rsvpd.Config) {
	cfg.Listen = viper.GetString("listen")
	cfg.StateFile = viper.GetString("state-file")
	cfg.PingDelay = viper.GetDuration("ping-delay")
	cfg.DeadTime = viper.GetDuration("dead-time")
	cfg.ProbeWindow = viper.GetDuration("probe-window")
	cfg.ProbePort = viper.GetInt("probe-port")
	cfg.NotifyExpired = viper.GetBool("notify-expired")
	cfg.NotifyInterval = viper.GetDuration("notify-interval")
	cfg.MailFrom = viper.GetString("mail-from")
	cfg.MetricsListen = viper.GetString("metrics-listen")
	cfg.LogLevel = viper.GetString("log-level")
}

func loadConfigFile() (string, error) {
	cfgPath := strings.TrimSpace(viper.GetString("config"))
	if cfgPath == "" {
		return "", nil
	}
	expanded, err := expandPath(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}
	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(p) == 1 {
			p = home
		} else if p[1] == '/' || p[1] == '\\' {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Abs(p)
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
