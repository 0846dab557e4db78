// Package datauri decodes data: URIs of the form
// data:[<mediatype>][;base64],<data>.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	scheme       = "data:"
	base64Marker = ";base64"

	// DefaultContentType applies to text payloads without a media type.
	DefaultContentType = "text/plain"
)

// ErrMalformed is returned for URIs that cannot be decoded.
var ErrMalformed = errors.New("datauri: malformed data URI")

// Data is a decoded data URI.
type Data struct {
	// ContentType is the media type. For base64 payloads it is the declared
	// type without the marker and may be empty; for text payloads it is the
	// full descriptor or DefaultContentType.
	ContentType string
	Base64      bool
	Payload     []byte
}

// Parse decodes raw, which must start with "data:". Only the first comma
// separates the descriptor from the payload.
func Parse(raw string) (*Data, error) {
	if len(raw) < len(scheme) || !strings.EqualFold(raw[:len(scheme)], scheme) {
		return nil, fmt.Errorf("%w: missing data scheme", ErrMalformed)
	}
	descriptor, payload, ok := strings.Cut(raw[len(scheme):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma", ErrMalformed)
	}

	// PathUnescape keeps '+' literal, which base64 payloads rely on.
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if mediaType, ok := strings.CutSuffix(descriptor, base64Marker); ok {
		b, err := decodeBase64(decoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return &Data{ContentType: mediaType, Base64: true, Payload: b}, nil
	}

	contentType := descriptor
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &Data{ContentType: contentType, Payload: []byte(decoded)}, nil
}

// decodeBase64 accepts the URL-safe alphabet, and also the standard one,
// with or without padding.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '+':
			return '-'
		case '/':
			return '_'
		case '=', ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	return base64.RawURLEncoding.DecodeString(s)
}
