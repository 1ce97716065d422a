package wsgi

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ErrorStream is where an App reports diagnostics, stored under wsgi.errors.
// The caller owns it; an App only writes and flushes.
type ErrorStream interface {
	io.Writer
	io.StringWriter
	// WriteLines writes each string in turn. No separators are added.
	WriteLines(lines ...string) error
	Flush() error
}

// LogStream is an ErrorStream that turns each line written into a log record.
// Text without a trailing newline is held until the newline arrives or Flush
// is called.
type LogStream struct {
	mu    sync.Mutex
	log   *slog.Logger
	level slog.Level
	attrs []slog.Attr
	buf   bytes.Buffer
}

// NewLogStream creates a LogStream logging at Warn level with the given attrs
// on every record.
func NewLogStream(log *slog.Logger, attrs ...slog.Attr) *LogStream {
	if log == nil {
		log = slog.Default()
	}
	return &LogStream{log: log, level: slog.LevelWarn, attrs: attrs}
}

func (s *LogStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(p)
	s.emitLines()
	return len(p), nil
}

func (s *LogStream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

func (s *LogStream) WriteLines(lines ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		s.buf.WriteString(l)
	}
	s.emitLines()
	return nil
}

func (s *LogStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLines()
	if s.buf.Len() > 0 {
		s.emit(s.buf.String())
		s.buf.Reset()
	}
	return nil
}

func (s *LogStream) emitLines() {
	for {
		i := bytes.IndexByte(s.buf.Bytes(), '\n')
		if i < 0 {
			return
		}
		line := string(s.buf.Next(i + 1))
		s.emit(strings.TrimRight(line, "\r\n"))
	}
}

func (s *LogStream) emit(msg string) {
	s.log.LogAttrs(context.Background(), s.level, msg, s.attrs...)
}

func (s *LogStream) String() string { return "<wsgi.LogStream>" }

// WriterStream is an ErrorStream buffered in front of an io.Writer, such as
// os.Stderr.
type WriterStream struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriterStream creates a WriterStream writing to w.
func NewWriterStream(w io.Writer) *WriterStream {
	return &WriterStream{w: bufio.NewWriter(w)}
}

func (s *WriterStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *WriterStream) WriteString(str string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WriteString(str)
}

func (s *WriterStream) WriteLines(lines ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		if _, err := s.w.WriteString(l); err != nil {
			return err
		}
	}
	return nil
}

func (s *WriterStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *WriterStream) String() string { return "<wsgi.WriterStream>" }
