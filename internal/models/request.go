package models

import "encoding/json"

type Step string

const (
	StepQueued    Step = "queued"
	StepStarted   Step = "started"
	StepIndexing  Step = "indexing"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

// IndexRequest asks for one package and its scan to be indexed. Either
// Scan or ScanURL is set.
type IndexRequest struct {
	Package *Package        `json:"package" binding:"required"`
	Scan    json.RawMessage `json:"scan,omitempty"`
	ScanURL string          `json:"scan_url,omitempty"`
}

// IndexResponse is returned when an index request is accepted.
type IndexResponse struct {
	Step      Step   `json:"step"`
	PackageID string `json:"packageId"`
}

// IndexStatusResponse reports the indexing step of a package.
type IndexStatusResponse struct {
	PackageID string `json:"packageId"`
	Step      Step   `json:"step"`
}
