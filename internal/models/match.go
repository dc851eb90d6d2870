package models

// MatchRecord is one match annotation attached to a scanned resource.
type MatchRecord struct {
	PackageID   string `json:"uuid"`
	Type        string `json:"type"`
	Namespace   string `json:"namespace,omitempty"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Filename    string `json:"filename,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	SHA1        string `json:"sha1,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Purl        string `json:"purl"`
	MatchType   string `json:"match_type"`
	MatchedPath string `json:"matched_path,omitempty"`
	Distance    int    `json:"distance"`
}

// NewMatchRecord copies the identity fields of pkg into a record.
func NewMatchRecord(pkg *Package, matchType, matchedPath string, distance int) MatchRecord {
	return MatchRecord{
		PackageID:   pkg.ID,
		Type:        pkg.Type,
		Namespace:   pkg.Namespace,
		Name:        pkg.Name,
		Version:     pkg.Version,
		Filename:    pkg.Filename,
		DownloadURL: pkg.DownloadURL,
		SHA1:        pkg.SHA1,
		Size:        pkg.Size,
		Purl:        pkg.PackageURL(),
		MatchType:   matchType,
		MatchedPath: matchedPath,
		Distance:    distance,
	}
}

// ResourceMatches groups the match records of one scanned resource.
type ResourceMatches struct {
	Path    string        `json:"path"`
	Type    string        `json:"type"`
	Matches []MatchRecord `json:"matches"`
}

// MatchResponse is returned by the match endpoint.
type MatchResponse struct {
	Results []ResourceMatches `json:"results"`
}
