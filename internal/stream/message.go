package stream

import (
	"encoding/json"
	"fmt"

	"github.com/RishiKendai/matchcode/internal/models"
)

// Stream message field names.
const (
	FieldPackage = "package"
	FieldScan    = "scan"
	FieldScanURL = "scan_url"
)

type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseIndexRequest decodes the index request carried by msg.
func ParseIndexRequest(msg *StreamMessage) (*models.IndexRequest, error) {
	raw, ok := msg.Fields[FieldPackage]
	if !ok || raw == "" {
		return nil, fmt.Errorf("message %s has no %s field", msg.ID, FieldPackage)
	}
	var pkg models.Package
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return nil, fmt.Errorf("failed to decode package of message %s: %w", msg.ID, err)
	}
	req := &models.IndexRequest{
		Package: &pkg,
		ScanURL: msg.Fields[FieldScanURL],
	}
	if scan := msg.Fields[FieldScan]; scan != "" {
		req.Scan = json.RawMessage(scan)
	}
	if len(req.Scan) == 0 && req.ScanURL == "" {
		return nil, fmt.Errorf("message %s has neither %s nor %s", msg.ID, FieldScan, FieldScanURL)
	}
	return req, nil
}

// EncodeIndexRequest renders req as stream message values.
func EncodeIndexRequest(req *models.IndexRequest) (map[string]interface{}, error) {
	pkg, err := json.Marshal(req.Package)
	if err != nil {
		return nil, fmt.Errorf("failed to encode package: %w", err)
	}
	values := map[string]interface{}{
		FieldPackage: string(pkg),
	}
	if len(req.Scan) > 0 {
		values[FieldScan] = string(req.Scan)
	}
	if req.ScanURL != "" {
		values[FieldScanURL] = req.ScanURL
	}
	return values, nil
}
