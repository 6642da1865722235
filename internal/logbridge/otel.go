package logbridge

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// OtelCore returns a zapcore.Core which emits entries of the enabled levels as
// OpenTelemetry log records. A nil logger results in a no-op core.
func OtelCore(logger otellog.Logger, enabler zapcore.LevelEnabler) zapcore.Core {
	if logger == nil {
		return zapcore.NewNopCore()
	}

	return &otelCore{
		LevelEnabler: enabler,
		logger:       logger,
	}
}

type otelCore struct {
	zapcore.LevelEnabler
	logger  otellog.Logger
	context []otellog.KeyValue
}

func (c *otelCore) With(fields []zapcore.Field) zapcore.Core {
	return &otelCore{
		LevelEnabler: c.LevelEnabler,
		logger:       c.logger,
		context:      append(slices.Clip(c.context), encodeFields(fields)...),
	}
}

func (c *otelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

func (c *otelCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	var r otellog.Record
	r.SetTimestamp(ent.Time)
	r.SetObservedTimestamp(time.Now())
	r.SetSeverity(zapLevelToOtel(ent.Level))
	r.SetSeverityText(ent.Level.CapitalString())
	r.SetBody(otellog.StringValue(ent.Message))

	if ent.LoggerName != "" {
		r.AddAttributes(otellog.String("logger", ent.LoggerName))
	}

	if ent.Caller.Defined {
		r.AddAttributes(otellog.String("caller", ent.Caller.TrimmedPath()))
	}

	if ent.Stack != "" {
		r.AddAttributes(otellog.String("stack", ent.Stack))
	}

	r.AddAttributes(c.context...)
	r.AddAttributes(encodeFields(fields)...)
	c.logger.Emit(context.Background(), r)
	return nil
}

func (c *otelCore) Sync() error {
	return nil
}

func zapLevelToOtel(l zapcore.Level) otellog.Severity {
	switch {
	case l < zapcore.DebugLevel:
		return otellog.SeverityTrace1
	case l == zapcore.DebugLevel:
		return otellog.SeverityDebug1
	case l == zapcore.InfoLevel:
		return otellog.SeverityInfo1
	case l == zapcore.WarnLevel:
		return otellog.SeverityWarn1
	case l == zapcore.ErrorLevel:
		return otellog.SeverityError1
	default:
		return otellog.SeverityError2
	}
}

// encodeFields lets zap encode the fields and converts the result into
// attributes sorted by key.
func encodeFields(fields []zapcore.Field) []otellog.KeyValue {
	if len(fields) == 0 {
		return nil
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	kvs := make([]otellog.KeyValue, 0, len(enc.Fields))
	for _, key := range slices.Sorted(maps.Keys(enc.Fields)) {
		kvs = append(kvs, otellog.KeyValue{Key: key, Value: toValue(enc.Fields[key])})
	}

	return kvs
}

func toValue(v any) otellog.Value {
	switch v := v.(type) {
	case string:
		return otellog.StringValue(v)
	case bool:
		return otellog.BoolValue(v)
	case int:
		return otellog.IntValue(v)
	case int8:
		return otellog.Int64Value(int64(v))
	case int16:
		return otellog.Int64Value(int64(v))
	case int32:
		return otellog.Int64Value(int64(v))
	case int64:
		return otellog.Int64Value(v)
	case uint8:
		return otellog.Int64Value(int64(v))
	case uint16:
		return otellog.Int64Value(int64(v))
	case uint32:
		return otellog.Int64Value(int64(v))
	case uint64:
		return otellog.Int64Value(int64(v))
	case float32:
		return otellog.Float64Value(float64(v))
	case float64:
		return otellog.Float64Value(v)
	case []byte:
		return otellog.BytesValue(v)
	case time.Duration:
		return otellog.StringValue(v.String())
	case time.Time:
		return otellog.StringValue(v.Format(time.RFC3339Nano))
	case []any:
		values := make([]otellog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toValue(item))
		}

		return otellog.SliceValue(values...)
	case map[string]any:
		kvs := make([]otellog.KeyValue, 0, len(v))
		for _, key := range slices.Sorted(maps.Keys(v)) {
			kvs = append(kvs, otellog.KeyValue{Key: key, Value: toValue(v[key])})
		}

		return otellog.MapValue(kvs...)
	default:
		return otellog.StringValue(fmt.Sprint(v))
	}
}
