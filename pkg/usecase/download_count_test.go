package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/gokadzev/dlcount/pkg/domain/model"
	"github.com/gokadzev/dlcount/pkg/domain/types"
	githubinfra "github.com/gokadzev/dlcount/pkg/infra/github"
	"github.com/gokadzev/dlcount/pkg/usecase"
)

// MockReleaseLister serves pre-built pages in order
type MockReleaseLister struct {
	pages     []*model.ReleasePage
	err       error
	errOnPage int
	calls     []int
}

func (m *MockReleaseLister) ListReleasesPage(ctx context.Context, page int) (*model.ReleasePage, error) {
	m.calls = append(m.calls, page)
	if m.err != nil && page == m.errOnPage {
		return nil, m.err
	}
	if page < 1 || page > len(m.pages) {
		return nil, fmt.Errorf("unexpected page %d", page)
	}
	return m.pages[page-1], nil
}

// paginate splits releases into pages of size n, linking each to the next
func paginate(releases []model.Release, n int) []*model.ReleasePage {
	var pages []*model.ReleasePage
	for i := 0; i < len(releases); i += n {
		end := min(i+n, len(releases))
		pages = append(pages, &model.ReleasePage{Releases: releases[i:end]})
	}
	if len(pages) == 0 {
		pages = append(pages, &model.ReleasePage{})
	}
	for i := range pages[:len(pages)-1] {
		pages[i].NextPage = i + 2
	}
	return pages
}

func release(tag string, counts ...int64) model.Release {
	r := model.Release{TagName: tag}
	for _, c := range counts {
		r.Assets = append(r.Assets, model.Asset{Name: tag + ".apk", DownloadCount: c})
	}
	return r
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	return string(data)
}

func TestDownloadCount_Run_SinglePage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "downloads_count.json")
	lister := &MockReleaseLister{pages: paginate([]model.Release{
		release("v1", 5, 3),
		release("v2", 10),
	}, 100)}

	result, err := usecase.NewDownloadCount(lister, out).Run(context.Background())
	gt.NoError(t, err)
	gt.Value(t, result.DownloadsCount).Equal(int64(18))
	gt.Value(t, readOutput(t, out)).Equal(`{"downloads_count": 18}`)
	gt.Value(t, lister.calls).Equal([]int{1})
}

func TestDownloadCount_Run_NoReleases(t *testing.T) {
	out := filepath.Join(t.TempDir(), "downloads_count.json")
	lister := &MockReleaseLister{pages: paginate(nil, 100)}

	result, err := usecase.NewDownloadCount(lister, out).Run(context.Background())
	gt.NoError(t, err)
	gt.Value(t, result.DownloadsCount).Equal(int64(0))
	gt.Value(t, readOutput(t, out)).Equal(`{"downloads_count": 0}`)
}

func TestDownloadCount_Run_FollowsEveryPage(t *testing.T) {
	releases := []model.Release{
		release("v1", 1), release("v2", 2), release("v3", 3),
		release("v4", 4), release("v5", 5), release("v6"),
		release("v7", 7, 7),
	}
	lister := &MockReleaseLister{pages: paginate(releases, 2)}
	out := filepath.Join(t.TempDir(), "downloads_count.json")

	result, err := usecase.NewDownloadCount(lister, out).Run(context.Background())
	gt.NoError(t, err)
	gt.Value(t, lister.calls).Equal([]int{1, 2, 3, 4})
	gt.Value(t, result.DownloadsCount).Equal(int64(29))
}

func TestDownloadCount_Run_IndependentOfPageSize(t *testing.T) {
	var releases []model.Release
	var want int64
	for i := range 25 {
		counts := []int64{int64(i), int64(i * 3)}
		releases = append(releases, release(fmt.Sprintf("v%d", i), counts...))
		want += counts[0] + counts[1]
	}

	for _, size := range []int{1, 2, 7, 25, 100} {
		t.Run(fmt.Sprintf("page size %d", size), func(t *testing.T) {
			lister := &MockReleaseLister{pages: paginate(releases, size)}
			out := filepath.Join(t.TempDir(), "downloads_count.json")

			result, err := usecase.NewDownloadCount(lister, out).Run(context.Background())
			gt.NoError(t, err)
			gt.Value(t, result.DownloadsCount).Equal(want)
			gt.Number(t, len(lister.calls)).Equal(len(lister.pages))
		})
	}
}

func TestDownloadCount_Run_RepeatedTagLastWriteWins(t *testing.T) {
	lister := &MockReleaseLister{pages: []*model.ReleasePage{
		{Releases: []model.Release{release("v1", 100), release("v2", 1)}, NextPage: 2},
		{Releases: []model.Release{release("v1", 7)}},
	}}
	out := filepath.Join(t.TempDir(), "downloads_count.json")

	result, err := usecase.NewDownloadCount(lister, out).Run(context.Background())
	gt.NoError(t, err)
	gt.Value(t, result.DownloadsCount).Equal(int64(8))
}

func TestDownloadCount_Run_Idempotent(t *testing.T) {
	releases := []model.Release{release("v1", 5, 3), release("v2", 10), release("v3")}
	out := filepath.Join(t.TempDir(), "downloads_count.json")

	_, err := usecase.NewDownloadCount(&MockReleaseLister{pages: paginate(releases, 2)}, out).Run(context.Background())
	gt.NoError(t, err)
	first := readOutput(t, out)

	_, err = usecase.NewDownloadCount(&MockReleaseLister{pages: paginate(releases, 2)}, out).Run(context.Background())
	gt.NoError(t, err)
	gt.Value(t, readOutput(t, out)).Equal(first)
}

func TestDownloadCount_Run_FailureLeavesOutputUntouched(t *testing.T) {
	out := filepath.Join(t.TempDir(), "downloads_count.json")
	gt.NoError(t, os.WriteFile(out, []byte(`{"downloads_count": 1234}`), 0644))

	lister := &MockReleaseLister{
		pages:     paginate([]model.Release{release("v1", 1), release("v2", 2)}, 1),
		err:       types.ErrHTTPStatus,
		errOnPage: 2,
	}

	result, err := usecase.NewDownloadCount(lister, out).Run(context.Background())
	gt.Error(t, err)
	gt.Value(t, result).Nil()
	gt.True(t, errors.Is(err, types.ErrHTTPStatus))
	gt.Value(t, readOutput(t, out)).Equal(`{"downloads_count": 1234}`)
	gt.Value(t, lister.calls).Equal([]int{1, 2})
}

func TestFetchAllReleases_NonAdvancingNextPage(t *testing.T) {
	lister := &MockReleaseLister{pages: []*model.ReleasePage{
		{Releases: []model.Release{release("v1", 1)}, NextPage: 2},
		{Releases: []model.Release{release("v2", 1)}, NextPage: 1},
	}}

	releases, err := usecase.FetchAllReleases(context.Background(), lister)
	gt.Error(t, err)
	gt.Value(t, releases).Nil()
	gt.String(t, err.Error()).Contains("next page does not advance")
}

func TestAggregate(t *testing.T) {
	tally := usecase.Aggregate([]model.Release{release("v1", 5, 3), release("v2", 10), release("v1", 2)})
	gt.Number(t, len(tally)).Equal(2)
	gt.Value(t, tally["v1"]).Equal(int64(2))
	gt.Value(t, tally.Total()).Equal(int64(12))

	gt.Value(t, usecase.Aggregate(nil).Total()).Equal(int64(0))
}

func TestEmit_OverwritesExistingContent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "downloads_count.json")
	gt.NoError(t, os.WriteFile(out, []byte(`{"downloads_count": 123456789,"stale":true}`), 0644))

	gt.NoError(t, usecase.Emit(out, 42))
	gt.Value(t, readOutput(t, out)).Equal(`{"downloads_count": 42}`)
}

func TestEmit_UnwritablePath(t *testing.T) {
	err := usecase.Emit(filepath.Join(t.TempDir(), "missing", "downloads_count.json"), 1)
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("temporary result file")
}

func TestEmit_ReplacesFileWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "downloads_count.json")

	for _, total := range []int64{1, 18, 0} {
		gt.NoError(t, usecase.Emit(out, total))
	}

	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.Number(t, len(entries)).Equal(1)
	gt.Value(t, entries[0].Name()).Equal("downloads_count.json")

	info, err := os.Stat(out)
	gt.NoError(t, err)
	gt.Value(t, info.Mode().Perm()).Equal(os.FileMode(0644))

	var result model.Result
	gt.NoError(t, json.Unmarshal([]byte(readOutput(t, out)), &result))
	gt.Value(t, result.DownloadsCount).Equal(int64(0))
}

func TestDownloadCount_Run_WithGitHubAPI(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	newServer := func(rateLimitFirst bool) (*httptest.Server, *atomic.Int32) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			if rateLimitFirst && n == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(90*time.Second).Unix(), 10))
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
				return
			}

			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("page") == "2" {
				_, _ = w.Write([]byte(`[{"tag_name":"v2","assets":[{"download_count":10}]}]`))
				return
			}
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=2>; rel="next"`, r.Host, r.URL.Path))
			_, _ = w.Write([]byte(`[{"tag_name":"v1","assets":[{"download_count":5},{"download_count":3}]}]`))
		}))
		return server, &calls
	}

	run := func(t *testing.T, rateLimitFirst bool) (string, []time.Duration, int32) {
		server, calls := newServer(rateLimitFirst)
		defer server.Close()

		var waits []time.Duration
		client, err := githubinfra.NewClient("gokadzev", "Musify",
			githubinfra.WithBaseURL(server.URL),
			githubinfra.WithClock(func() time.Time { return now }),
			githubinfra.WithSleeper(func(ctx context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}),
		)
		gt.NoError(t, err)

		out := filepath.Join(t.TempDir(), "downloads_count.json")
		result, err := usecase.NewDownloadCount(client, out).Run(context.Background())
		gt.NoError(t, err)
		gt.Value(t, result.DownloadsCount).Equal(int64(18))

		return readOutput(t, out), waits, calls.Load()
	}

	plain, plainWaits, plainCalls := run(t, false)
	limited, limitedWaits, limitedCalls := run(t, true)

	gt.Value(t, plain).Equal(`{"downloads_count": 18}`)
	gt.Value(t, limited).Equal(plain)
	gt.Number(t, len(plainWaits)).Equal(0)
	gt.Value(t, limitedWaits).Equal([]time.Duration{90 * time.Second})
	gt.Value(t, plainCalls).Equal(int32(2))
	gt.Value(t, limitedCalls).Equal(int32(3))
}
