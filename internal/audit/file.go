package audit

import (
	"context"
	"fmt"
	"os"
)

// TimeLayout is the timestamp format of the transaction log.
const TimeLayout = "2006-01-02 15:04:05"

// FileSink appends "[YYYY-MM-DD HH:MM:SS] text" lines to a log file, stamped in
// local time.
type FileSink struct {
	path string
}

// NewFileSink returns a sink appending to path.
func NewFileSink(path string) *FileSink { return &FileSink{path: path} }

func (s *FileSink) Write(_ context.Context, e Entry) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transaction log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "[%s] %s\n", e.Time.Local().Format(TimeLayout), e.Text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *FileSink) Close() error { return nil }
