package wsgi

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
)

// InputStream is the request body as seen by an App. Every method advances
// the same cursor, so iterating Lines part way and then calling ReadAll
// returns exactly the bytes Lines didn't deliver.
type InputStream interface {
	io.Reader
	// ReadLine returns the next line including its trailing newline. The last
	// line may lack the newline. At the end of the stream it returns io.EOF
	// with no data.
	ReadLine() ([]byte, error)
	// Lines iterates over the remaining lines.
	Lines() iter.Seq2[[]byte, error]
	// ReadAll returns everything that hasn't been read yet. It returns an
	// empty, non-nil slice when the stream is already exhausted.
	ReadAll() ([]byte, error)
}

// Input is the gateway's InputStream.
type Input struct {
	r *bufio.Reader
}

// NewInput wraps r. If length is not negative, reading stops after length
// bytes, as it must when r is a connection carrying a Content-Length body.
func NewInput(r io.Reader, length int64) *Input {
	if r == nil {
		r = bytes.NewReader(nil)
	}
	if length >= 0 {
		r = io.LimitReader(r, length)
	}
	return &Input{bufio.NewReader(r)}
}

func (in *Input) Read(p []byte) (int, error) { return in.r.Read(p) }

func (in *Input) ReadLine() ([]byte, error) {
	line, err := in.r.ReadBytes('\n')
	if errors.Is(err, io.EOF) {
		if len(line) == 0 {
			return nil, io.EOF
		}
		return line, nil
	}
	return line, err
}

func (in *Input) Lines() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			line, err := in.ReadLine()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

func (in *Input) ReadAll() ([]byte, error) {
	rest, err := io.ReadAll(in.r)
	if rest == nil {
		rest = []byte{}
	}
	return rest, err
}

// String keeps the environment dump of an App readable.
func (in *Input) String() string { return "<wsgi.Input>" }
