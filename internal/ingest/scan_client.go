package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/rs/zerolog/log"
)

// maxScanBytes bounds a downloaded scan document.
const maxScanBytes = 256 << 20

// ScanClient downloads scan documents referenced by index requests.
type ScanClient struct {
	httpClient *http.Client
}

func NewScanClient(timeout time.Duration) *ScanClient {
	return &ScanClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the scan at url and builds its codebase.
func (c *ScanClient) Fetch(ctx context.Context, url string) (*codebase.Codebase, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	cb, err := codebase.Load(io.LimitReader(resp.Body, maxScanBytes))
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("url", url).
		Int("resources", cb.Len()).
		Msg("Scan fetched")
	return cb, nil
}
