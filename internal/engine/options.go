package engine

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// XferInfoFunc is called periodically while a transfer is in progress.
// Returning non-zero aborts the transfer with CodeAbortedByCallback.
type XferInfoFunc func(h *Handle, dltotal, dlnow, ultotal, ulnow int64) int

// Options is the per-request configuration snapshot.
type Options struct {
	// CustomRequest overrides the method. Defaults to GET, or PUT when Upload is set.
	CustomRequest string
	// HTTPHeader lines in curl form: "Key: value" adds, "Key:" removes a
	// header the engine would otherwise send, "Key;" sends an empty value.
	HTTPHeader []string

	// Upload sends InFile as the request body. InFile is closed once the
	// engine is done with it if it implements io.Closer.
	Upload bool
	InFile io.Reader
	// InFileSize is the upload size. Nil sends the body chunked.
	InFileSize *int64

	FollowLocation bool
	// MaxRedirs caps followed redirects; -1 means unlimited.
	MaxRedirs int

	// DecodeContent enables content-encoding negotiation and decoding.
	// An empty AcceptEncoding advertises every encoding the engine supports.
	DecodeContent  bool
	AcceptEncoding string

	// StreamResponse must be set: the engine only hands bodies back as streams.
	StreamResponse bool
	// TransferEncoding requests TE negotiation; not supported.
	TransferEncoding bool
	// HTTPTransferDecoding must be set: chunked framing is always removed.
	HTTPTransferDecoding bool

	XferInfoFunction XferInfoFunc
	// ProgressInterval overrides the engine's tick interval for this request.
	ProgressInterval time.Duration
}

func (o *Options) validate() error {
	switch {
	case !o.StreamResponse:
		return &Error{Code: CodeNotSupported, Err: errors.New("buffered responses")}
	case o.TransferEncoding:
		return &Error{Code: CodeNotSupported, Err: errors.New("transfer-encoding negotiation")}
	case !o.HTTPTransferDecoding:
		return &Error{Code: CodeNotSupported, Err: errors.New("raw transfer framing")}
	case o.Upload && o.InFile == nil:
		return &Error{Code: CodeBadFunctionArgument, Err: errors.New("upload without input")}
	case o.InFileSize != nil && *o.InFileSize < 0:
		return &Error{Code: CodeBadFunctionArgument, Err: errors.New("negative upload size")}
	}
	return nil
}

func (o *Options) method() string {
	if o.CustomRequest != "" {
		return o.CustomRequest
	}
	if o.Upload {
		return http.MethodPut
	}
	return http.MethodGet
}

// applyHeaderLines installs lines on req and returns the canonical names the
// caller asked to suppress.
func applyHeaderLines(req *http.Request, lines []string) (map[string]bool, error) {
	removed := make(map[string]bool)
	for _, line := range lines {
		if name, value, ok := strings.Cut(line, ":"); ok {
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			if name == "" {
				return nil, &Error{Code: CodeBadFunctionArgument, Err: errors.New("header line without name: " + line)}
			}
			if value == "" {
				req.Header.Del(name)
				removed[http.CanonicalHeaderKey(name)] = true
				continue
			}
			if strings.EqualFold(name, "Host") {
				req.Host = value
				continue
			}
			req.Header.Add(name, value)
			continue
		}
		if name, ok := strings.CutSuffix(strings.TrimSpace(line), ";"); ok && name != "" {
			req.Header.Add(name, "")
			continue
		}
		return nil, &Error{Code: CodeBadFunctionArgument, Err: errors.New("malformed header line: " + line)}
	}
	return removed, nil
}

