package interfaces

import (
	"context"

	"github.com/gokadzev/dlcount/pkg/domain/model"
)

// ReleaseLister fetches one page of the releases listing of a repository
type ReleaseLister interface {
	// ListReleasesPage fetches the given page. Page 1 is the first page;
	// subsequent pages are taken from the previous page's NextPage.
	ListReleasesPage(ctx context.Context, page int) (*model.ReleasePage, error)
}
