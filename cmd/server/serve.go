package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/linechat/internal/server"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

type serveOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}
	v := server.NewViper()

	cmd := &cobra.Command{
		Use:   "linechat",
		Short: "Line-oriented TCP chat server",
		Long: `linechat accepts TCP clients speaking a newline-terminated text protocol:

  login:<name>   claim a unique name
  users:online   list who is online
  anything else  broadcast to everyone

A WebSocket gateway speaking the same protocol, health, metrics and the
online list are served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "path to a config file (yaml, json or toml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading LINECHAT_* variables")
	flags.String("addr", "", "TCP address for chat clients (default 127.0.0.1:8888)")
	flags.String("http-addr", "", "HTTP address for health, metrics and WebSocket clients")
	flags.Int("history-size", 0, "number of chat lines replayed to new users")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("tracing-exporter", "", "span exporter: none or stdout")

	bindFlags(v, flags, map[string]string{
		"addr":             "addr",
		"http-addr":        "http_addr",
		"history-size":     "history_size",
		"log-level":        "log.level",
		"log-format":       "log.format",
		"tracing-exporter": "tracing.exporter",
	})
	return cmd
}

// bindFlags binds flags to viper keys. A flag only overrides the environment
// and config file when it is set explicitly.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func runServe(ctx context.Context, v *viper.Viper, opts *serveOptions) error {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}
	if opts.configFile != "" {
		v.SetConfigFile(opts.configFile)
	}

	cfg, err := server.LoadConfig(v)
	if err != nil {
		return err
	}

	logger, err := server.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	tp, err := server.NewTracerProvider(cfg.Tracing, os.Stderr)
	if err != nil {
		return err
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("error flushing spans", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting linechat", "version", version, "addr", cfg.Addr, "http_addr", cfg.HTTPAddr)
	srv := server.New(cfg, logger, reg)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
