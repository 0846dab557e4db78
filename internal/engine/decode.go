package engine

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// supportedEncodings is advertised when Options.AcceptEncoding is empty.
const supportedEncodings = "gzip, deflate, zstd"

// decodedBody lazily wraps src in a decompressor for encoding so that
// constructing it never blocks on the network.
type decodedBody struct {
	src      io.ReadCloser
	encoding string
	srcErr   error

	r     io.Reader
	close func() error
	err   error
}

func newDecodedBody(src io.ReadCloser, contentEncoding string) io.ReadCloser {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))
	switch encoding {
	case "gzip", "x-gzip", "deflate", "zstd":
		return &decodedBody{src: src, encoding: encoding}
	default:
		return src
	}
}

func (d *decodedBody) init() error {
	switch d.encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(sourceReader{d})
		if err != nil {
			return err
		}
		d.r, d.close = zr, zr.Close
	case "deflate":
		zr, err := zlib.NewReader(sourceReader{d})
		if err != nil {
			return err
		}
		d.r, d.close = zr, zr.Close
	case "zstd":
		zr, err := zstd.NewReader(sourceReader{d}, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		d.r = zr
		d.close = func() error {
			zr.Close()
			return nil
		}
	}
	return nil
}

func (d *decodedBody) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.r == nil {
		if err := d.init(); err != nil {
			if err == io.EOF && d.srcErr == nil {
				// empty body, nothing to decode
				d.err = io.EOF
				return 0, io.EOF
			}
			d.err = d.classify(err)
			return 0, d.err
		}
	}
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF {
		err = d.classify(err)
		d.err = err
	}
	return n, err
}

func (d *decodedBody) Close() error {
	if d.close != nil {
		d.close()
	}
	return d.src.Close()
}

// sourceReader records transport errors so they are not mistaken for
// corrupt content.
type sourceReader struct{ d *decodedBody }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.d.src.Read(p)
	if err != nil && err != io.EOF {
		s.d.srcErr = err
	}
	return n, err
}

func (d *decodedBody) classify(err error) error {
	if d.srcErr != nil {
		return d.srcErr
	}
	return badEncoding(err)
}

func badEncoding(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &Error{Code: CodeBadContentEncoding, Err: io.ErrUnexpectedEOF}
	}
	return &Error{Code: CodeBadContentEncoding, Err: err}
}
