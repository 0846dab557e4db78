package engine

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// ResultKey is the synthetic field that opens every HeaderBlock and carries
// the status line, e.g. "HTTP/1.1 200 OK".
const ResultKey = "result"

// HeaderField is one received header line.
type HeaderField struct {
	Name  string
	Value string
}

// HeaderBlock holds the headers of one response. Blocks from followed
// redirects precede the final one.
type HeaderBlock []HeaderField

// Values returns every value of name, matched case-insensitively.
func (b HeaderBlock) Values(name string) []string {
	var out []string
	for _, f := range b {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

func blockFromResponse(resp *http.Response) HeaderBlock {
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	block := make(HeaderBlock, 0, len(resp.Header)+1)
	block = append(block, HeaderField{Name: ResultKey, Value: statusLine(resp)})
	for _, name := range names {
		for _, value := range resp.Header[name] {
			block = append(block, HeaderField{Name: name, Value: value})
		}
	}
	return block
}

func statusLine(resp *http.Response) string {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := resp.Status
	if status == "" {
		status = strings.TrimSpace(strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode))
	}
	return proto + " " + status
}

// reason strips the code from resp.Status ("200 OK" → "OK").
func reason(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
