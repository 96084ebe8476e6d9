package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelStrings(t *testing.T) {
	assert.Equal(t, "success", SuccessLevel.String())
	assert.Equal(t, "SUCCESS", SuccessLevel.CapitalString())
	assert.Equal(t, "FAIL", FailLevel.CapitalString())
	assert.Equal(t, zapcore.InfoLevel, SuccessLevel.toZapLevel())
	assert.Equal(t, zapcore.FatalLevel, FailLevel.toZapLevel())
}

func TestNewLoggerNoOutputs(t *testing.T) {
	l, err := New(Options{ConsoleOutput: false, FileOutput: false})
	require.NoError(t, err)
	// Must be a usable no-op logger.
	l.Infof("dropped")
	l.Successf("dropped too")
	require.NoError(t, l.Sync())
}

func TestNewLoggerFileOutputRequiresPath(t *testing.T) {
	_, err := New(Options{FileOutput: true, LogFilePath: ""})
	require.Error(t, err)
}

func TestConsoleEncoderLine(t *testing.T) {
	cfg := zapcore.EncoderConfig{TimeKey: "", MessageKey: "msg", LineEnding: "\n"}
	enc := newConsoleEncoder(cfg, false)

	buf, err := enc.EncodeEntry(
		zapcore.Entry{Level: zapcore.InfoLevel, Message: "module finished"},
		[]zapcore.Field{
			{Key: customLevelKey, Type: zapcore.StringType, String: "SUCCESS"},
			{Key: "module", Type: zapcore.StringType, String: "network"},
			{Key: "attempts", Type: zapcore.Int64Type, Integer: 2},
		},
	)
	require.NoError(t, err)
	line := buf.String()
	assert.Contains(t, line, "[module:network]")
	assert.Contains(t, line, "[SUCCESS]")
	assert.Contains(t, line, "module finished")
	assert.Contains(t, line, "attempts=2")
}

func TestConsoleEncoderCloneCarriesFields(t *testing.T) {
	cfg := zapcore.EncoderConfig{TimeKey: "", MessageKey: "msg", LineEnding: "\n"}
	enc := newConsoleEncoder(cfg, false)
	enc.AddString("module", "firewall")

	clone := enc.Clone()
	buf, err := clone.EncodeEntry(zapcore.Entry{Level: zapcore.InfoLevel, Message: "hi"}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[module:firewall]")
}
