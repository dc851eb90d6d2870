package codebase

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
)

// Scan is the ScanCode style JSON document describing a codebase.
type Scan struct {
	ArchiveSHA1 string     `json:"archive_sha1,omitempty"`
	Files       []Resource `json:"files"`
}

// Resource is one entry of a scan.
type Resource struct {
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	Extension string    `json:"extension,omitempty"`
	Size      int64     `json:"size,omitempty"`
	SHA1      string    `json:"sha1,omitempty"`
	Halo1     string    `json:"halo1,omitempty"`
	ExtraData ExtraData `json:"extra_data,omitempty"`
}

// ExtraData carries the directory fingerprints computed for a scan.
type ExtraData struct {
	DirectoryStructure string `json:"directory_structure,omitempty"`
	DirectoryContent   string `json:"directory_content,omitempty"`
}

// Load decodes a scan and builds its codebase.
func Load(r io.Reader) (*Codebase, error) {
	var scan Scan
	if err := json.NewDecoder(r).Decode(&scan); err != nil {
		return nil, fmt.Errorf("failed to decode scan: %w", err)
	}
	return FromScan(&scan)
}

// FromScan builds the codebase of a decoded scan.
func FromScan(scan *Scan) (*Codebase, error) {
	cb, err := New(scan.ArchiveSHA1, scan.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to build codebase: %w", err)
	}
	return cb, nil
}

func (r *Resource) node(cleaned string) *Node {
	n := &Node{
		Path:      cleaned,
		Name:      r.Name,
		Extension: r.Extension,
		IsFile:    r.Type == "file",
		Size:      r.Size,
		SHA1:      strings.ToLower(r.SHA1),
	}
	if n.Name == "" {
		n.Name = path.Base(cleaned)
	}
	fps := make(map[string]string)
	if n.IsFile {
		if r.Halo1 != "" {
			fps[Halo1] = r.Halo1
		}
	} else {
		if r.ExtraData.DirectoryStructure != "" {
			fps[DirectoryStructure] = r.ExtraData.DirectoryStructure
		}
		if r.ExtraData.DirectoryContent != "" {
			fps[DirectoryContent] = r.ExtraData.DirectoryContent
		}
	}
	n.Fingerprints = fps
	return n
}
