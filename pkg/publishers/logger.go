package publishers

import "github.com/samvad-hq/rest-records-fetcher/internal/logger"

// Logger aliases the shared structured logger so publishers can report delivery.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger {
	if log == nil {
		return logger.NopLogger{}
	}
	return log
}
