package fetch

import (
	"fmt"
	"net/url"

	"github.com/dvcrn/fetchbridge/internal/fileurl"
	"github.com/rs/zerolog"
)

// fetchFile never touches the filesystem; the body opens the file on its
// first read and reports open failures there.
func fetchFile(req *Request, u *url.URL, log zerolog.Logger) (*Response, error) {
	path, err := fileurl.ToPath(u)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	log.Debug().Str("path", path).Msg("Streaming file")

	return &Response{
		Status: 200,
		Header: NewHeaders(),
		Body:   fileurl.Open(path),
		URL:    req.URL,
	}, nil
}
