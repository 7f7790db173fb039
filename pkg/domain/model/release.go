package model

// Asset is a downloadable file attached to a release
type Asset struct {
	Name          string // Asset file name
	DownloadCount int64  // Server-side download counter
}

// Release is a tagged release and its assets
type Release struct {
	TagName string  // Unique per repository
	Assets  []Asset // Ordered as returned by the API
}

// ReleasePage is one page of a releases listing
type ReleasePage struct {
	Releases []Release
	NextPage int // 0 when the response carried no "next" link
}

// HasNext reports whether another page is available
func (p *ReleasePage) HasNext() bool {
	return p.NextPage != 0
}
