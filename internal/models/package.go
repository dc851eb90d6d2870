package models

import (
	"strings"
	"time"

	"github.com/package-url/packageurl-go"
)

// Package represents an identified software release stored in the
// reference database.
type Package struct {
	ID          string    `bson:"_id" json:"uuid"`
	Type        string    `bson:"type" json:"type"`
	Namespace   string    `bson:"namespace,omitempty" json:"namespace,omitempty"`
	Name        string    `bson:"name" json:"name"`
	Version     string    `bson:"version,omitempty" json:"version,omitempty"`
	Qualifiers  string    `bson:"qualifiers,omitempty" json:"qualifiers,omitempty"`
	Subpath     string    `bson:"subpath,omitempty" json:"subpath,omitempty"`
	Filename    string    `bson:"filename,omitempty" json:"filename,omitempty"`
	DownloadURL string    `bson:"download_url,omitempty" json:"download_url,omitempty"`
	SHA1        string    `bson:"sha1,omitempty" json:"sha1,omitempty"`
	MD5         string    `bson:"md5,omitempty" json:"md5,omitempty"`
	Size        int64     `bson:"size,omitempty" json:"size,omitempty"`
	IndexErrors []string  `bson:"index_errors,omitempty" json:"index_errors,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// PackageURL renders the purl for the package.
func (p *Package) PackageURL() string {
	purl := packageurl.NewPackageURL(p.Type, p.Namespace, p.Name, p.Version, parseQualifiers(p.Qualifiers), p.Subpath)
	return purl.ToString()
}

// AppendIndexError adds a diagnostic to the package error log.
// Existing diagnostics are never overwritten.
func (p *Package) AppendIndexError(msg string) {
	p.IndexErrors = append(p.IndexErrors, msg)
}

// IndexError returns the accumulated diagnostics as text.
func (p *Package) IndexError() string {
	return strings.Join(p.IndexErrors, "\n")
}

// parseQualifiers reads "key=value&key=value" qualifier strings.
func parseQualifiers(s string) packageurl.Qualifiers {
	if s == "" {
		return nil
	}
	var q packageurl.Qualifiers
	for _, pair := range strings.Split(s, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		q = append(q, packageurl.Qualifier{Key: key, Value: value})
	}
	return q
}
