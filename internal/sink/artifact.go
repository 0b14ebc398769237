// Package sink persists the transcript artifact. Every append opens,
// writes, and closes the file so each page's contribution is flushed
// independently; a killed process leaves a readable partial artifact.
package sink

import (
	"fmt"
	"log/slog"
	"os"
)

type FileSink struct {
	log *slog.Logger
}

func NewFileSink(logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{log: logger}
}

// Exists is the whole-job idempotence gate: a present artifact, even a
// partial one, means the job is treated as done.
func (s *FileSink) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteHeader creates the artifact with its one-line source header.
func (s *FileSink) WriteHeader(path, documentName string) error {
	header := fmt.Sprintf("<!-- Source: %s -->\n\n", documentName)
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	s.log.Debug("sink.header_written", "path", path, "document", documentName)
	return nil
}

// AppendPage appends one page marker plus its result text. The file is
// opened and closed per call.
func (s *FileSink) AppendPage(path string, index int, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	_, werr := fmt.Fprintf(f, "\n<!-- Page %d -->\n%s\n", index, text)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("append page %d: %w", index, werr)
	}
	if cerr != nil {
		return fmt.Errorf("close artifact: %w", cerr)
	}
	s.log.Debug("sink.page_appended", "path", path, "page", index, "bytes", len(text))
	return nil
}
