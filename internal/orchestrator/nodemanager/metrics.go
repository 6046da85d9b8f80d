package nodemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ResourceSnapshot is the payload GET /node/resource returns: the
// reading the planner's lazy resource-update step refreshes into the
// Registry before finalizing a placement.
type ResourceSnapshot struct {
	CPUAvailPercent float64 `json:"cpu_avail_percent"`
	RAMAvailPercent float64 `json:"ram_avail_percent"`
}

// FetchResource issues the lazy-update HTTP GET .../node/resource call
// against this node's control URI, polling every second until either a
// response arrives or ctx is done, per §4.4.7.
func (n *Node) FetchResource(ctx context.Context) (ResourceSnapshot, error) {
	url := n.controlURI + "/node/resource"

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		snap, err := fetchOnce(ctx, n.httpClient, url)
		if err == nil {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return ResourceSnapshot{}, fmt.Errorf("fetch resource for %s: %w", n.ID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func fetchOnce(ctx context.Context, client *http.Client, url string) (ResourceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ResourceSnapshot{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return ResourceSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ResourceSnapshot{}, fmt.Errorf("node resource fetch: status %d", resp.StatusCode)
	}

	var snap ResourceSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return ResourceSnapshot{}, fmt.Errorf("decode resource snapshot: %w", err)
	}

	return snap, nil
}
