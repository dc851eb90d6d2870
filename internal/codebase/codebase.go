// Package codebase holds the scanned resource tree that matching walks.
// A Codebase is immutable once built; match results are kept alongside it
// keyed by node ID.
package codebase

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Fingerprint attribute names carried by scanned resources.
const (
	DirectoryStructure = "directory_structure"
	DirectoryContent   = "directory_content"
	Halo1              = "halo1"
)

// virtualRoot names the synthesized root of a scan with several top-level
// resources.
const virtualRoot = "virtual_root"

// Node is one file or directory in a codebase.
type Node struct {
	ID           int
	Path         string
	Name         string
	Extension    string
	IsFile       bool
	Size         int64
	SHA1         string
	Fingerprints map[string]string
	Parent       int
	Children     []int
}

// Fingerprint returns the named fingerprint attribute if present and non-empty.
func (n *Node) Fingerprint(name string) (string, bool) {
	fp, ok := n.Fingerprints[name]
	return fp, ok && fp != ""
}

// Type returns "file" or "directory".
func (n *Node) Type() string {
	if n.IsFile {
		return "file"
	}
	return "directory"
}

// Codebase is a tree of nodes stored in top-down walk order: a node's ID is
// its position in a pre-order walk with children sorted by name.
type Codebase struct {
	// ArchiveSHA1 is the digest of the archive the codebase was extracted from.
	ArchiveSHA1 string
	nodes       []*Node
}

// New builds a codebase from flat scan resources. Parent directories that
// are not listed are synthesized.
func New(archiveSHA1 string, resources []Resource) (*Codebase, error) {
	byPath := make(map[string]*Node, len(resources))
	for i := range resources {
		r := &resources[i]
		p := cleanPath(r.Path)
		if p == "" {
			return nil, fmt.Errorf("resource %d has an empty path", i)
		}
		if p == "." || p == ".." || strings.HasPrefix(p, "../") {
			return nil, fmt.Errorf("resource path %q escapes the scan root", r.Path)
		}
		if _, exists := byPath[p]; exists {
			return nil, fmt.Errorf("duplicate resource path %q", p)
		}
		byPath[p] = r.node(p)
	}
	if len(byPath) == 0 {
		return nil, fmt.Errorf("scan has no resources")
	}

	// Synthesize missing ancestors.
	for p := range byPath {
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := byPath[dir]; ok {
				continue
			}
			byPath[dir] = &Node{Path: dir, Name: path.Base(dir)}
		}
	}

	var tops []string
	children := make(map[string][]string)
	for p, n := range byPath {
		dir := path.Dir(p)
		if dir == "." {
			tops = append(tops, p)
			continue
		}
		parent := byPath[dir]
		if parent.IsFile {
			return nil, fmt.Errorf("resource %q is nested under file %q", p, dir)
		}
		children[dir] = append(children[dir], n.Path)
	}

	// The synthesized root is keyed by "", which no cleaned resource path
	// can be. Its name only has to differ from the top-level entries.
	rootPath := ""
	if len(tops) == 1 {
		rootPath = tops[0]
	} else {
		name := virtualRoot
		for i := 1; byPath[name] != nil; i++ {
			name = fmt.Sprintf("%s_%d", virtualRoot, i)
		}
		byPath[rootPath] = &Node{Path: name, Name: name}
		children[rootPath] = tops
	}

	cb := &Codebase{ArchiveSHA1: archiveSHA1, nodes: make([]*Node, 0, len(byPath))}
	var visit func(p string, parent int)
	visit = func(p string, parent int) {
		n := byPath[p]
		n.ID = len(cb.nodes)
		n.Parent = parent
		cb.nodes = append(cb.nodes, n)
		kids := children[p]
		sort.Strings(kids)
		for _, kid := range kids {
			n.Children = append(n.Children, len(cb.nodes))
			visit(kid, n.ID)
		}
	}
	visit(rootPath, -1)
	return cb, nil
}

// Root returns the top node.
func (c *Codebase) Root() *Node {
	return c.nodes[0]
}

// Node returns the node with the given ID, or nil.
func (c *Codebase) Node(id int) *Node {
	if id < 0 || id >= len(c.nodes) {
		return nil
	}
	return c.nodes[id]
}

// Len returns the number of nodes.
func (c *Codebase) Len() int {
	return len(c.nodes)
}

// Walk calls fn for every node top-down. A non-nil error stops the walk.
func (c *Codebase) Walk(fn func(*Node) error) error {
	for _, n := range c.nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func cleanPath(p string) string {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
