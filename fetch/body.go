package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/dvcrn/fetchbridge/internal/engine"
)

// bodyStream adapts a request body into the reader handed to the engine.
// Sequences are pumped through a pipe one chunk at a time.
func bodyStream(body any) (io.Reader, error) {
	switch b := body.(type) {
	case io.Reader:
		return b, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case iter.Seq[[]byte]:
		return pipeSeq(withNilErrors(b)), nil
	case func(yield func([]byte) bool):
		return pipeSeq(withNilErrors(b)), nil
	case iter.Seq2[[]byte, error]:
		return pipeSeq(b), nil
	case func(yield func([]byte, error) bool):
		return pipeSeq(b), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedBody, body)
	}
}

func withNilErrors(seq iter.Seq[[]byte]) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for chunk := range seq {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// pipeSeq streams seq through an io.Pipe. Closing the returned reader stops
// the producer at its next chunk.
func pipeSeq(seq iter.Seq2[[]byte, error]) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		for chunk, err := range seq {
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if len(chunk) == 0 {
				continue
			}
			if _, err := pw.Write(chunk); err != nil {
				return
			}
		}
		pw.Close()
	}()
	return pr
}

// responseBody ends the stream quietly when the transfer was aborted by the
// progress callback. Every other error passes through.
type responseBody struct {
	src io.ReadCloser
}

func (b *responseBody) Read(p []byte) (int, error) {
	n, err := b.src.Read(p)
	if err != nil && errors.Is(err, engine.ErrAbortedByCallback) {
		err = io.EOF
	}
	return n, err
}

func (b *responseBody) Close() error {
	return b.src.Close()
}
