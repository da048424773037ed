// Package responsewriter wraps the response writer of a request so that later
// stages can tell whether the header is already on the wire, and injects it
// into the request context.
package responsewriter

import (
	"context"
	"errors"
	"net/http"
)

// Using an unexported type prevents key collisions from other packages.
type responseWriterKey string

// ResponseWriterKey is the context key for the response writer.
const ResponseWriterKey responseWriterKey = "response-writer"

// Writer records the status code and whether the header has been sent.
type Writer struct {
	http.ResponseWriter

	status        int
	headerWritten bool
	bytes         int
}

func Wrap(w http.ResponseWriter) *Writer {
	if tw, ok := w.(*Writer); ok {
		return tw
	}
	return &Writer{ResponseWriter: w}
}

func (w *Writer) WriteHeader(code int) {
	if w.headerWritten {
		return
	}
	w.status = code
	w.headerWritten = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *Writer) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// HeaderWritten reports whether the status line and headers have been sent.
func (w *Writer) HeaderWritten() bool { return w.headerWritten }

// Status returns the response status, 200 if nothing was written yet.
func (w *Writer) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *Writer) BytesWritten() int { return w.bytes }

func (w *Writer) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// ResponseWriterMiddleware is an http.Handler middleware that wraps the
// response writer and injects the wrapper into the context.
func ResponseWriterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := Wrap(w)
		ctx := context.WithValue(r.Context(), ResponseWriterKey, tw)
		next.ServeHTTP(tw, r.WithContext(ctx))
	})
}

// ResponseWriterFromContext is a helper function that retrieves the response
// writer from the context.
func ResponseWriterFromContext(ctx context.Context) (*Writer, error) {
	w, ok := ctx.Value(ResponseWriterKey).(*Writer)
	if !ok {
		return nil, errors.New("response writer not found in context")
	}
	return w, nil
}
