package logsetup

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Verbose int8
	Log     struct {
		Encoding string
		Output   string
	}
}

func DefaultOptions() *Options {
	var level int8

	if os.Getenv("RUNNER_DEBUG") != "" || os.Getenv("STACKPIPE_DEBUG") != "" {
		level = 10
	}

	o := &Options{
		Verbose: level,
	}

	o.Log.Encoding = "console"
	o.Log.Output = "stderr"
	return o
}

func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.Int8VarP(&o.Verbose, "verbose", "v", o.Verbose, "Log verbosity level. With `0` only info logs are visible while 127 is the most verbose level.")
	fs.StringVar(&o.Log.Encoding, "log-encoding", o.Log.Encoding, "Log encoding format, one of console or json.")
	fs.StringVar(&o.Log.Output, "log-output", o.Log.Output, "Log destination, stderr, stdout or a file path.")
}

// Config returns the zap configuration described by the options.
func (o *Options) Config() zap.Config {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Encoding = o.Log.Encoding
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.Level(-1 * o.Verbose))
	zapConfig.OutputPaths = []string{o.Log.Output}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	zapConfig.EncoderConfig.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendInt(int(l) * -1)
	}

	zapConfig.DisableStacktrace = o.Verbose < 5
	return zapConfig
}

// Build creates the logger. Additional cores, for example the otel bridge, receive
// every entry the primary core receives.
func (o *Options) Build(cores ...zapcore.Core) (logr.Logger, zap.Config, error) {
	zapConfig := o.Config()

	var opts []zap.Option
	if len(cores) > 0 {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append([]zapcore.Core{core}, cores...)...)
		}))
	}

	zapLog, err := zapConfig.Build(opts...)
	if err != nil {
		return logr.Discard(), zapConfig, err
	}

	return zapr.NewLogger(zapLog), zapConfig, nil
}
