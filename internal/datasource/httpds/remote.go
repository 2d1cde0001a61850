package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"lodging/internal/table"
)

// Remote is a datasource.Source that GETs a delimited export. The URL may
// carry {name} placeholders (the listings export uses {city} and {date})
// which are expanded once, at construction.
type Remote struct {
	client *Client
	url    string
}

// NewRemote expands tmpl with vars and binds the result to client. An
// unexpanded placeholder left in the URL is an error, since fetching it
// would only produce a confusing 404.
func NewRemote(client *Client, tmpl string, vars map[string]string) (*Remote, error) {
	u, err := ExpandURL(tmpl, vars)
	if err != nil {
		return nil, err
	}
	return &Remote{client: client, url: u}, nil
}

// URL returns the expanded URL.
func (r *Remote) URL() string { return r.url }

// ID identifies the source for the session cache.
func (r *Remote) ID() string { return r.url }

// Open fetches the export. The returned body is still bounded by the
// client timeout while the caller reads it; a read that fails part way
// (timeout, reset) wraps table.ErrSourceUnavailable.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, err
	}
	log.Printf("httpds: GET %s -> %d (%d bytes declared)", r.url, resp.StatusCode, resp.ContentLength)
	return &body{rc: resp.Body, url: r.url}, nil
}

type body struct {
	rc  io.ReadCloser
	url string
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("read %s: %w", b.url, errors.Join(table.ErrSourceUnavailable, err))
	}
	return n, err
}

func (b *body) Close() error { return b.rc.Close() }

// ExpandURL substitutes {key} placeholders in tmpl. Keys are applied in
// sorted order so the result does not depend on map iteration.
func ExpandURL(tmpl string, vars map[string]string) (string, error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := tmpl
	for _, k := range keys {
		out = strings.ReplaceAll(out, "{"+k+"}", vars[k])
	}
	if i := strings.IndexByte(out, '{'); i >= 0 {
		if j := strings.IndexByte(out[i:], '}'); j > 0 {
			return "", fmt.Errorf("httpds: url template %q: unresolved placeholder %s", tmpl, out[i:i+j+1])
		}
	}
	return out, nil
}
