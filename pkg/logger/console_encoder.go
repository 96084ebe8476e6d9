package logger

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// customLevelKey carries the kubestrap level through zap fields so the
// console encoder can render SUCCESS and FAIL with their own prefixes.
const customLevelKey = "customlevel"

var bufferPool = buffer.NewPool()

var levelColors = map[Level]*color.Color{
	DebugLevel:   color.New(color.FgCyan),
	InfoLevel:    color.New(color.FgBlue),
	SuccessLevel: color.New(color.FgGreen),
	WarnLevel:    color.New(color.FgYellow),
	ErrorLevel:   color.New(color.FgRed),
	FailLevel:    color.New(color.FgRed, color.Bold),
}

// contextKeys are well-known scoping fields rendered as a compact prefix,
// in this order, ahead of the message.
var contextKeys = []string{"module", "step", "probe"}

// consoleEncoder renders log entries as single human-readable lines:
//
//	2024-01-02T15:04:05Z [module:kubernetes] [INFO] waiting for api server attempt=2
type consoleEncoder struct {
	zapcore.EncoderConfig
	colors bool
	fields []zapcore.Field
}

func newConsoleEncoder(cfg zapcore.EncoderConfig, colors bool) zapcore.Encoder {
	return &consoleEncoder{EncoderConfig: cfg, colors: colors}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	clone := &consoleEncoder{EncoderConfig: enc.EncoderConfig, colors: enc.colors}
	clone.fields = append(clone.fields, enc.fields...)
	return clone
}

// The AddX methods accumulate fields added via Logger.With so EncodeEntry can
// render them alongside per-entry fields.

func (enc *consoleEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	enc.fields = append(enc.fields, zapcore.Field{Key: key, Type: zapcore.SkipType})
	return nil
}

func (enc *consoleEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	enc.fields = append(enc.fields, zapcore.Field{Key: key, Type: zapcore.SkipType})
	return nil
}

func (enc *consoleEncoder) AddBinary(key string, val []byte) {
	enc.AddString(key, fmt.Sprintf("%x", val))
}

func (enc *consoleEncoder) AddByteString(key string, val []byte) {
	enc.AddString(key, string(val))
}

func (enc *consoleEncoder) AddBool(key string, val bool) {
	n := int64(0)
	if val {
		n = 1
	}
	enc.fields = append(enc.fields, zapcore.Field{Key: key, Type: zapcore.BoolType, Integer: n})
}

func (enc *consoleEncoder) AddComplex128(key string, val complex128) {
	enc.AddString(key, fmt.Sprintf("%v", val))
}

func (enc *consoleEncoder) AddComplex64(key string, val complex64) {
	enc.AddString(key, fmt.Sprintf("%v", val))
}

func (enc *consoleEncoder) AddDuration(key string, val time.Duration) {
	enc.AddString(key, val.String())
}

func (enc *consoleEncoder) AddFloat64(key string, val float64) {
	enc.AddString(key, fmt.Sprintf("%g", val))
}

func (enc *consoleEncoder) AddFloat32(key string, val float32) {
	enc.AddFloat64(key, float64(val))
}

func (enc *consoleEncoder) AddInt(key string, val int)     { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddInt64(key string, val int64) {
	enc.fields = append(enc.fields, zapcore.Field{Key: key, Type: zapcore.Int64Type, Integer: val})
}
func (enc *consoleEncoder) AddInt32(key string, val int32) { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddInt16(key string, val int16) { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddInt8(key string, val int8)   { enc.AddInt64(key, int64(val)) }

func (enc *consoleEncoder) AddString(key, val string) {
	enc.fields = append(enc.fields, zapcore.Field{Key: key, Type: zapcore.StringType, String: val})
}

func (enc *consoleEncoder) AddTime(key string, val time.Time) {
	enc.AddString(key, val.Format(enc.timestampFormat()))
}

func (enc *consoleEncoder) AddUint(key string, val uint)       { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddUint64(key string, val uint64)   { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddUint32(key string, val uint32)   { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddUint16(key string, val uint16)   { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddUint8(key string, val uint8)     { enc.AddInt64(key, int64(val)) }
func (enc *consoleEncoder) AddUintptr(key string, val uintptr) { enc.AddInt64(key, int64(val)) }

func (enc *consoleEncoder) AddReflected(key string, obj interface{}) error {
	enc.AddString(key, fmt.Sprintf("%v", obj))
	return nil
}

func (enc *consoleEncoder) OpenNamespace(key string) {}

func (enc *consoleEncoder) timestampFormat() string {
	return time.RFC3339
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := bufferPool.Get()

	if enc.TimeKey != "" {
		line.AppendString(ent.Time.Format(enc.timestampFormat()))
		line.AppendString(" ")
	}

	all := make([]zapcore.Field, 0, len(enc.fields)+len(fields))
	all = append(all, enc.fields...)
	all = append(all, fields...)

	// Scoping fields become a compact bracketed prefix.
	contextValues := make(map[string]string, len(contextKeys))
	level := levelFromZap(ent.Level)
	remaining := make([]zapcore.Field, 0, len(all))
	for _, f := range all {
		switch {
		case f.Key == customLevelKey && f.Type == zapcore.StringType:
			level = levelFromString(f.String)
		case isContextKey(f.Key) && f.Type == zapcore.StringType:
			contextValues[f.Key] = f.String
		default:
			remaining = append(remaining, f)
		}
	}

	for _, key := range contextKeys {
		if val, ok := contextValues[key]; ok && val != "" {
			fmt.Fprintf(line, "[%s:%s] ", key, val)
		}
	}

	prefix := fmt.Sprintf("[%s]", level.CapitalString())
	if enc.colors {
		if c, ok := levelColors[level]; ok {
			prefix = c.Sprint(prefix)
		}
	}
	line.AppendString(prefix)
	line.AppendString(" ")
	line.AppendString(ent.Message)

	for _, f := range remaining {
		line.AppendString(" ")
		line.AppendString(f.Key)
		line.AppendString("=")
		appendFieldValue(line, f)
	}

	if enc.LineEnding != "" {
		line.AppendString(enc.LineEnding)
	} else {
		line.AppendString(zapcore.DefaultLineEnding)
	}
	return line, nil
}

func appendFieldValue(line *buffer.Buffer, f zapcore.Field) {
	switch f.Type {
	case zapcore.StringType:
		if f.String == "" || strings.ContainsAny(f.String, " \t") {
			fmt.Fprintf(line, "%q", f.String)
		} else {
			line.AppendString(f.String)
		}
	case zapcore.BoolType:
		line.AppendBool(f.Integer == 1)
	case zapcore.Int64Type:
		line.AppendInt(f.Integer)
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok && err != nil {
			fmt.Fprintf(line, "%q", err.Error())
		} else {
			line.AppendString("nil")
		}
	case zapcore.DurationType:
		line.AppendString(time.Duration(f.Integer).String())
	case zapcore.SkipType:
		line.AppendString("...")
	default:
		fmt.Fprintf(line, "%v", f.Interface)
	}
}

func isContextKey(key string) bool {
	for _, k := range contextKeys {
		if key == k {
			return true
		}
	}
	return false
}

func levelFromString(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "SUCCESS":
		return SuccessLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FAIL":
		return FailLevel
	default:
		return InfoLevel
	}
}

func levelFromZap(l zapcore.Level) Level {
	switch l {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	case zapcore.FatalLevel, zapcore.PanicLevel:
		return FailLevel
	default:
		return InfoLevel
	}
}
