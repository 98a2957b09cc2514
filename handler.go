package dispatch

import "log/slog"

// ErrorHandler receives failures from calls whose declared contract has no
// error channel. Implementations are side-effecting sinks: they must not
// propagate and are never retried. A panicking handler is contained by the
// dispatcher.
type ErrorHandler interface {
	HandleError(err error, meta CallMeta)
}

// ErrorHandlerFunc adapts a function to the ErrorHandler interface.
type ErrorHandlerFunc func(err error, meta CallMeta)

func (f ErrorHandlerFunc) HandleError(err error, meta CallMeta) {
	f(err, meta)
}

// LogHandler is the default ErrorHandler: it reports the failure with the
// call's diagnostic metadata and swallows it.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler returns a LogHandler writing to the given logger.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger}
}

// HandleError logs the failure of an asynchronous call.
func (h *LogHandler) HandleError(err error, meta CallMeta) {
	h.logger.Error("uncaught failure in asynchronous call",
		"method", meta.Method,
		"invocation_id", meta.ID,
		"args", meta.Args,
		"error", err,
	)
}
