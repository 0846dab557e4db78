package fetch

import (
	"io"
)

// Response is the result of a dispatch. Body streams the payload and must be
// read at most once and closed.
type Response struct {
	Status     int
	StatusText string
	Header     *Headers
	Body       io.ReadCloser
	// URL is the request URL, even when redirects were followed.
	URL string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Bytes reads the whole body and closes it.
func (r *Response) Bytes() ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// Text reads the whole body as a string and closes it.
func (r *Response) Text() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}
