package imagemeta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// SourceKind tells where image bytes come from.
type SourceKind string

const (
	SourceDataURL SourceKind = "data_url"
	SourceRemote  SourceKind = "remote"
	SourceFile    SourceKind = "file"
	SourceBytes   SourceKind = "bytes"
)

// Source is an image reference: an embedded data URL, a remote url, a local
// file, or raw bytes already held in memory.
type Source struct {
	Kind  SourceKind
	Value string
	Data  []byte
}

// ParseSource classifies raw as a data URL, remote url, or local path.
func ParseSource(raw string) Source {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return Source{Kind: SourceDataURL, Value: trimmed}
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return Source{Kind: SourceRemote, Value: trimmed}
	default:
		return Source{Kind: SourceFile, Value: trimmed}
	}
}

// BytesSource wraps data that has already been read.
func BytesSource(data []byte) Source {
	return Source{Kind: SourceBytes, Data: data}
}

// open resolves the source to a reader. Callers must always Close the result,
// which releases any file handle or network response it holds.
func (e *Enricher) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch src.Kind {
	case SourceBytes:
		return io.NopCloser(bytes.NewReader(src.Data)), nil
	case SourceDataURL:
		_, data, err := ParseDataURL(src.Value)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case SourceRemote:
		return e.fetch(ctx, src.Value)
	case SourceFile:
		if src.Value == "" {
			return nil, fmt.Errorf("%w: empty source", ErrDecode)
		}
		f, err := os.Open(src.Value)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", ErrDecode, src.Kind)
	}
}

func (e *Enricher) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := e.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	return &limitedReadCloser{Reader: io.LimitReader(resp.Body, e.maxBytes()), closer: resp.Body}, nil
}

type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}
