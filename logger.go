package analysiscache

// Fields are structured key/values attached to one log line.
type Fields map[string]any

// Logger is what the coordinator and the analysis pipeline log through.
// log/zap, log/logrus and log/slog adapt the common backends; a nil Logger
// in Options means NopLogger.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
