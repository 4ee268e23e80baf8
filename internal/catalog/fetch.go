package catalog

import (
	"context"
	"fmt"
	"log/slog"
)

// Fetcher stores candidate archives on disk.
type Fetcher struct {
	downloader Downloader
	logger     *slog.Logger
}

// NewFetcher creates a fetcher using d for transfers.
func NewFetcher(d Downloader) *Fetcher {
	return &Fetcher{
		downloader: d,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger for the fetcher.
func (f *Fetcher) WithLogger(logger *slog.Logger) *Fetcher {
	f.logger = logger
	return f
}

// Fetch downloads c to dest. The downloader checks the catalog size and
// only makes dest visible once complete. All failures wrap ErrDownloadFailed.
func (f *Fetcher) Fetch(ctx context.Context, c Candidate, dest string) error {
	if c.Handle == "" {
		return fmt.Errorf("%w: %s: catalog gave no download handle", ErrDownloadFailed, c.Identity.Name)
	}

	n, err := f.downloader.Download(ctx, c.Handle, dest, c.Size)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, c.Identity.Name, err)
	}

	f.logger.DebugContext(ctx, "scene fetched",
		slog.String("scene", c.Identity.Name),
		slog.String("dest", dest),
		slog.Int64("bytes", n),
	)
	return nil
}
