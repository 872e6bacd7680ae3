// Package fetcher downloads document bytes over HTTP and FTP and reads
// label-master spreadsheets.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Downloader retrieves the raw bytes behind a URL.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Documents dispatches document downloads by URL scheme. Facility file
// servers publish some scans over FTP; everything else is HTTP(S).
type Documents struct {
	HTTP Downloader
	FTP  Downloader
}

// NewDocuments creates a scheme-dispatching document fetcher.
func NewDocuments(httpFetcher, ftpFetcher Downloader) *Documents {
	return &Documents{HTTP: httpFetcher, FTP: ftpFetcher}
}

// Fetch downloads the document at rawURL and returns its bytes.
func (d *Documents) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}

	var dl Downloader
	switch u.Scheme {
	case "http", "https":
		dl = d.HTTP
	case "ftp":
		dl = d.FTP
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
	if dl == nil {
		return nil, eris.Errorf("fetcher: no downloader configured for scheme %q", u.Scheme)
	}

	body, err := dl.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body of %s", rawURL)
	}
	return data, nil
}
