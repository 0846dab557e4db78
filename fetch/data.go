package fetch

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dvcrn/fetchbridge/internal/datauri"
	"github.com/rs/zerolog"
)

func fetchData(req *Request, log zerolog.Logger) (*Response, error) {
	raw, _, _ := strings.Cut(req.URL, "#")
	d, err := datauri.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	header := NewHeaders()
	if d.ContentType != "" {
		header.Set("content-type", d.ContentType)
	}
	log.Debug().Str("content_type", d.ContentType).Int("size", len(d.Payload)).Msg("Decoded data URI")

	return &Response{
		Status:     200,
		StatusText: "OK",
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(d.Payload)),
		URL:        req.URL,
	}, nil
}
