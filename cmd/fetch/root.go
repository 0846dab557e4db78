package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvcrn/fetchbridge/fetch"
	"github.com/spf13/cobra"
)

type options struct {
	method   string
	headers  []string
	data     string
	redirect string
	include  bool
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "fetch [flags] <url>",
		Short: "Fetch a URL and write the response body to stdout",
		Long: `Fetch dispatches a request for http(s), data: and file: URLs.
Relative URLs resolve against FETCH_BASE_URL.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "request", "X", "", "request method (default GET, POST with --data)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "request header as 'Name: value', repeatable")
	f.StringVarP(&opts.data, "data", "d", "", "request body; @file streams a file, @- reads stdin")
	f.StringVar(&opts.redirect, "redirect", string(fetch.RedirectModeFollow), "redirect mode: follow, manual or error")
	f.BoolVarP(&opts.include, "include", "i", false, "print the status line and response headers")
	f.DurationVar(&opts.timeout, "timeout", 0, "abort the request after this duration")

	return cmd
}

func run(ctx context.Context, stdin io.Reader, stdout io.Writer, target string, opts *options) error {
	header := fetch.NewHeaders()
	for _, line := range opts.headers {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, want 'Name: value'", line)
		}
		header.Append(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.timeout, fetch.ErrTimeout)
		defer cancel()
	}
	signal := fetch.SignalFromContext(ctx)

	init := &fetch.RequestInit{
		Method:   opts.method,
		Header:   header,
		Redirect: fetch.RedirectMode(opts.redirect),
		Signal:   signal,
	}
	if opts.data != "" {
		body, size, err := openData(opts.data, stdin)
		if err != nil {
			return err
		}
		init.Body = body
		if init.Method == "" {
			init.Method = "POST"
		}
		if size >= 0 && !header.Has("Content-Length") {
			header.Set("Content-Length", strconv.FormatInt(size, 10))
		}
	}

	// Cancellation goes through the signal only.
	res, err := fetch.Fetch(context.WithoutCancel(ctx), target, init)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if opts.include {
		fmt.Fprintf(stdout, "%d %s\n", res.Status, res.StatusText)
		for name, value := range res.Header.All() {
			fmt.Fprintf(stdout, "%s: %s\n", name, value)
		}
		fmt.Fprintln(stdout)
	}

	if _, err := io.Copy(stdout, res.Body); err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if signal.Aborted() {
		return fmt.Errorf("request aborted: %w", signal.Reason())
	}
	return nil
}

// openData resolves the --data argument. size is -1 when unknown.
func openData(data string, stdin io.Reader) (io.Reader, int64, error) {
	name, isFile := strings.CutPrefix(data, "@")
	switch {
	case !isFile:
		return strings.NewReader(data), int64(len(data)), nil
	case name == "-":
		return stdin, -1, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("opening request body: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("opening request body: %w", err)
	}
	if !info.Mode().IsRegular() {
		return f, -1, nil
	}
	return f, info.Size(), nil
}
