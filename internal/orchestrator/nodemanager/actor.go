package nodemanager

import (
	"context"
	"fmt"
	"net/http"
)

// StopActor asks this node to stop hosting actorID. The host node owns
// the running actor (§3), so the placement core's only lever here is
// a best-effort REST call to the node's control endpoint; §6 does not
// name this route explicitly because actor lifecycle belongs to the
// node's own runtime, not this core's exposed surface — this is the
// inferred counterpart to the lazy resource-refresh GET.
func (n *Node) StopActor(ctx context.Context, actorID string) error {
	url := n.controlURI + "/actor/" + actorID + "/stop"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stop actor %s on %s: %w", actorID, n.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("stop actor %s on %s: status %d", actorID, n.ID, resp.StatusCode)
	}

	return nil
}
