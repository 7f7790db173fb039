package model

// DownloadTally maps a release tag name to the summed download count of its assets
type DownloadTally map[string]int64

// Result is the persisted artifact consumed by badge tooling
type Result struct {
	DownloadsCount int64 `json:"downloads_count"`
}

// Tally sums the download counts of every asset attached to a release.
// A release without assets contributes 0.
func Tally(release Release) int64 {
	var sum int64
	for _, asset := range release.Assets {
		sum += asset.DownloadCount
	}
	return sum
}

// Accumulate records the tally of a release under its tag name.
// A tag seen again overwrites the earlier value.
func (t DownloadTally) Accumulate(release Release) {
	t[release.TagName] = Tally(release)
}

// Total sums all tallied values
func (t DownloadTally) Total() int64 {
	var total int64
	for _, v := range t {
		total += v
	}
	return total
}
