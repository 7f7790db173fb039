package interfaces

import (
	"context"

	"github.com/gokadzev/dlcount/pkg/domain/model"
)

// DownloadCountUseCase runs the fetch, aggregate and emit pipeline
type DownloadCountUseCase interface {
	// Run traverses every releases page, sums the download counts and writes
	// the result file. The file is untouched when any step fails.
	Run(ctx context.Context) (*model.Result, error)
}
