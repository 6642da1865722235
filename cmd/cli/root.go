package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zapcore"

	"github.com/raffis/stackpipe/internal/logbridge"
	"github.com/raffis/stackpipe/internal/logsetup"
	"github.com/raffis/stackpipe/internal/otelsetup"
)

var (
	version = "0.0.0-dev"
	commit  = "none"
	date    = "unknown"
)

const otelName = "github.com/raffis/stackpipe"

type rootFlags struct {
	timeout     time.Duration `env:"TIMEOUT"`
	noColor     bool          `env:"NO_COLOR"`
	logOptions  *logsetup.Options
	otelOptions *otelsetup.Options
}

var rootArgs = rootFlags{
	logOptions:  logsetup.DefaultOptions(),
	otelOptions: otelsetup.DefaultOptions(),
}

var (
	logger    = logr.Discard()
	providers = &otelsetup.Providers{}
)

var rootCmd = &cobra.Command{
	Use:               "stackpipe",
	Short:             "Build, test against docker compose stacks and ship container images",
	SilenceUsage:      true,
	PersistentPreRunE: runRoot,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if shutdownErr := shutdownTelemetry(); shutdownErr != nil {
		logger.Error(shutdownErr, "failed to flush telemetry")
	}

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	_, noColor := os.LookupEnv("NO_COLOR")
	rootCmd.PersistentFlags().DurationVarP(&rootArgs.timeout, "timeout", "", 0, "Abort after the given duration, 0 means no timeout.")
	rootCmd.PersistentFlags().BoolVarP(&rootArgs.noColor, "no-color", "", noColor, "Disable all color output to the terminal.")
	rootArgs.logOptions.BindFlags(rootCmd.PersistentFlags())
	rootArgs.otelOptions.BindFlags(rootCmd.PersistentFlags())
}

func runRoot(cmd *cobra.Command, args []string) error {
	rootArgs.otelOptions.ServiceVersion = version
	rootArgs.otelOptions.Command = cmd.Name()

	var err error
	providers, err = rootArgs.otelOptions.Build(cmd.Context())
	if err != nil {
		return err
	}

	var cores []zapcore.Core
	if providers.Logger != nil {
		cores = append(cores, logbridge.OtelCore(providers.Logger.Logger(otelName), rootArgs.logOptions.Config().Level))
	}

	if providers.Tracer != nil {
		otel.SetTracerProvider(providers.Tracer)
	}

	if providers.Meter != nil {
		otel.SetMeterProvider(providers.Meter)
	}

	logger, _, err = rootArgs.logOptions.Build(cores...)
	return err
}

func shutdownTelemetry() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return providers.Shutdown(ctx)
}
