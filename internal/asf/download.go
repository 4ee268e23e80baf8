package asf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// PartialSuffix is appended to the destination while a download is in
// flight.
const PartialSuffix = ".part"

// ErrCredentialsRejected is returned when the download ends on a login page
// or an authorisation failure.
var ErrCredentialsRejected = errors.New("earthdata credentials rejected")

// Download fetches rawURL into dest. The body is streamed to dest+".part",
// synced, and renamed to dest only once complete and, when size is positive,
// exactly size bytes long. On any failure the partial file is removed and
// dest is left untouched. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL, dest string, size int64) (int64, error) {
	start := time.Now()
	c.logger.InfoContext(ctx, "downloading product",
		slog.String("url", rawURL),
		slog.String("dest", dest),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	c.authorize(req)

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w: status %d from %s", ErrCredentialsRejected, resp.StatusCode, resp.Request.URL.Host)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("download returned status %d: %s", resp.StatusCode, string(body))
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "text/html" {
		return 0, fmt.Errorf("%w: received an HTML page from %s", ErrCredentialsRejected, resp.Request.URL.Host)
	}

	n, err := writeAtomic(dest, resp.Body, resp.ContentLength, size)
	if err != nil {
		return 0, err
	}

	c.logger.InfoContext(ctx, "download completed",
		slog.String("dest", dest),
		slog.Int64("bytes", n),
		slog.Duration("duration", time.Since(start)),
	)
	return n, nil
}

// writeAtomic copies r into dest via a partial file. contentLength is the
// transfer length announced by the server (-1 if unknown); size is the
// catalog size (0 if unknown). dest only appears when both match.
func writeAtomic(dest string, r io.Reader, contentLength, size int64) (n int64, err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	part := dest + PartialSuffix
	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", part, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(part)
		}
	}()

	n, err = io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", part, err)
	}
	if contentLength >= 0 && n != contentLength {
		return 0, fmt.Errorf("short download: got %d of %d bytes", n, contentLength)
	}
	if size > 0 && n != size {
		return 0, fmt.Errorf("size mismatch: got %d bytes, catalog lists %d", n, size)
	}
	if err = f.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync %s: %w", part, err)
	}
	if err = f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", part, err)
	}
	if err = os.Rename(part, dest); err != nil {
		return 0, fmt.Errorf("failed to move %s into place: %w", part, err)
	}
	return n, nil
}

// checkRedirect re-applies credentials when the redirect chain reaches the
// Earthdata Login host. Other hosts, such as pre-signed storage URLs, never
// receive them.
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	req.Header.Del("Authorization")
	c.authorize(req)
	return nil
}

// authorize attaches the Earthdata credentials to requests bound for the
// login host only.
func (c *Client) authorize(req *http.Request) {
	if c.user != "" && req.URL.Hostname() == c.authHost {
		req.SetBasicAuth(c.user, c.password)
	}
}
