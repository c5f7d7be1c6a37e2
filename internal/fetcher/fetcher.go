// Package fetcher downloads raw dataset files over HTTP and FTP and unpacks
// ZIP archives and XLSX workbooks into the CSV form the pipeline consumes.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote dataset files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Resolver picks a Fetcher by URL scheme.
type Resolver struct {
	HTTP Fetcher
	FTP  Fetcher
}

// For returns the fetcher responsible for the URL's scheme.
func (r Resolver) For(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		if r.HTTP == nil {
			return nil, eris.New("fetcher: no http fetcher configured")
		}
		return r.HTTP, nil
	case "ftp":
		if r.FTP == nil {
			return nil, eris.New("fetcher: no ftp fetcher configured")
		}
		return r.FTP, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
