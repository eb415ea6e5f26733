package progress

import "log/slog"

// Log reports progress as structured log records. It is the verbose-mode
// sink for non-interactive output, where a self-updating line would be
// noise.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sink. A nil logger falls back to slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) FileDiscovered(path string) {
	l.logger.Debug("discovered", "path", path)
}

func (l *Log) FileExcluded(path string) {
	l.logger.Debug("excluded", "path", path)
}

func (l *Log) FileWritten(path string, size int64) {
	l.logger.Debug("archived", "path", path, "size", size)
}

// Warning is a no-op: the engine logs warning details itself.
func (l *Log) Warning(path string, err error) {}

func (l *Log) Done(s Summary) {
	l.logger.Info("backup finished",
		"files", s.Files,
		"bytes", s.Bytes,
		"excluded", s.Excluded,
		"warnings", s.Warnings,
		"duration", s.Duration,
	)
}
