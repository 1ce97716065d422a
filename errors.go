package wsgi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoStartResponse is reported when an App's body ends without the App
	// having called StartResponse.
	ErrNoStartResponse = errors.New("start_response was never called")
	// ErrStartedTwice is returned by the gateway's StartResponse on a second
	// call.
	ErrStartedTwice = errors.New("start_response called more than once")
	// ErrBadStatus is returned by the gateway's StartResponse when the status
	// line isn't "NNN reason".
	ErrBadStatus = errors.New("malformed status line")
	// ErrNilBody is reported when an App returns a nil Body.
	ErrNilBody = errors.New("application returned a nil body")
	// ErrNilApp is reported when a Gateway has no App to serve.
	ErrNilApp = errors.New("no application to serve")
)

// Error is an error implementation that provides the ability to specify three
// things to the gateway error handler:
//   - The HTTP status code that should be used in the response.
//   - The client-facing message that should be sent.  Typically this is a
//     sanitized error message, such as "Internal Server Error".
//   - Internal debugging detail including a log message and the underlying
//     error that should be included in the server logs.
//
// Note that Cause may be nil.
type Error struct {
	Code      int
	ClientMsg string
	LogMsg    string
	Cause     error
}

func (e Error) Error() string {
	return fmt.Sprintf("[%d] %s: %v", e.Code, e.LogMsg, e.Cause)
}

func (e Error) Unwrap() error { return e.Cause }

// ToError converts any error into an Error, filling in a 500 code and the
// standard status text where they're missing.
func ToError(err error) Error {
	var e Error
	if !errors.As(err, &e) {
		e = Error{LogMsg: "Failure", Cause: err}
	}
	if e.Code == 0 {
		e.Code = http.StatusInternalServerError
	}
	if e.ClientMsg == "" {
		e.ClientMsg = http.StatusText(e.Code)
	}
	return e
}

// HandleError is the gateway's default error handler, used when an App fails
// before any part of the response was sent. If the error is an Error, it
// responds with the specified status code and client message.  Otherwise, it
// responds with a 500.  In both cases, the underlying error is added to the
// request log.
var HandleError = func(w http.ResponseWriter, r *http.Request, l *LogEntry, err error) {
	e := ToError(err)
	if l != nil {
		msg := fmt.Sprintf("(%d) %s", e.Code, e.LogMsg)
		if e.Cause != nil {
			msg += ": " + e.Cause.Error()
		}
		l.Error = errors.New(msg)
	}
	http.Error(w, e.ClientMsg, e.Code)
}
