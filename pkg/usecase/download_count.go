package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/m-mizutani/goerr/v2"

	"github.com/gokadzev/dlcount/pkg/domain/interfaces"
	"github.com/gokadzev/dlcount/pkg/domain/model"
)

// DownloadCount sums release download counts and writes them to a file
type DownloadCount struct {
	lister     interfaces.ReleaseLister
	outputPath string
	logger     *slog.Logger
}

var _ interfaces.DownloadCountUseCase = (*DownloadCount)(nil)

// Option is a functional option for DownloadCount
type Option func(*DownloadCount)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(uc *DownloadCount) {
		uc.logger = logger
	}
}

// NewDownloadCount creates a new DownloadCount use case writing to outputPath
func NewDownloadCount(lister interfaces.ReleaseLister, outputPath string, opts ...Option) *DownloadCount {
	uc := &DownloadCount{
		lister:     lister,
		outputPath: outputPath,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run fetches every releases page, aggregates the download counts and writes
// the result file. Nothing is written when fetching fails.
func (uc *DownloadCount) Run(ctx context.Context) (*model.Result, error) {
	releases, err := FetchAllReleases(ctx, uc.lister)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch releases")
	}

	tally := Aggregate(releases)
	for _, tag := range slices.Sorted(maps.Keys(tally)) {
		uc.logger.Debug("Release downloads", "tag_name", tag, "downloads", tally[tag])
	}

	result := &model.Result{DownloadsCount: tally.Total()}
	if err := Emit(uc.outputPath, result.DownloadsCount); err != nil {
		return nil, err
	}

	uc.logger.Info("Wrote download count",
		"path", uc.outputPath,
		"release_count", len(tally),
		"downloads_count", result.DownloadsCount,
	)

	return result, nil
}

// FetchAllReleases follows the releases listing from the first page until a
// page without a next link, returning every release in page order.
func FetchAllReleases(ctx context.Context, lister interfaces.ReleaseLister) ([]model.Release, error) {
	var releases []model.Release

	for page := 1; ; {
		result, err := lister.ListReleasesPage(ctx, page)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch releases page", goerr.V("page", page))
		}
		releases = append(releases, result.Releases...)

		if !result.HasNext() {
			return releases, nil
		}
		if result.NextPage <= page {
			return nil, goerr.New("next page does not advance",
				goerr.V("page", page),
				goerr.V("next_page", result.NextPage),
			)
		}
		page = result.NextPage
	}
}

// Aggregate builds a fresh tally from releases. Later releases win over
// earlier ones that share a tag name.
func Aggregate(releases []model.Release) model.DownloadTally {
	tally := make(model.DownloadTally, len(releases))
	for _, release := range releases {
		tally.Accumulate(release)
	}
	return tally
}

// Emit writes {"downloads_count": total} as the sole content of path. The
// file is replaced by rename, so readers see either the old or the new content.
func Emit(path string, total int64) error {
	data, err := json.Marshal(model.Result{DownloadsCount: total})
	if err != nil {
		return goerr.Wrap(err, "failed to encode result")
	}
	// Match the key/value separator badge tooling has always received
	data = bytes.Replace(data, []byte(`":`), []byte(`": `), 1)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary result file", goerr.V("path", path))
	}
	defer func() {
		// No-op once the rename succeeded
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write result file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to set result file mode", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to write result file", goerr.V("path", tmp.Name()))
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return goerr.Wrap(err, "failed to write result file", goerr.V("path", path))
	}

	return nil
}
