package dialer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"recruit-platform/internal/calls"
)

// Gateway performs the actual outbound contact. The engine only decides when
// and whether to attempt; providers live behind this interface.
//
// Dial must be issued only after the call is durably in_progress. Outcomes
// come back asynchronously through the record-outcome API, not the return
// value; a Dial error only means the attempt never reached the provider.

type Gateway interface {
	Dial(ctx context.Context, c calls.ScheduledCall) error
}

// HTTPGateway posts the call to an external dialer service.
type HTTPGateway struct {
	URL    string
	Client *http.Client
}

func NewHTTPGateway(url string) *HTTPGateway {
	return &HTTPGateway{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type dialRequest struct {
	CallID      string `json:"call_id"`
	WorkspaceID string `json:"workspace_id"`
	EntryID     string `json:"entry_id"`
	Type        string `json:"type"`
	PhoneNumber string `json:"phone_number"`
	ContactName string `json:"contact_name,omitempty"`
	ToClient    bool   `json:"to_client"`
	ScriptID    string `json:"script_id,omitempty"`
	Attempt     int    `json:"attempt"`
}

func (g *HTTPGateway) Dial(ctx context.Context, c calls.ScheduledCall) error {
	body, err := json.Marshal(dialRequest{
		CallID:      c.ID,
		WorkspaceID: c.WorkspaceID,
		EntryID:     c.EntryID,
		Type:        string(c.Type),
		PhoneNumber: c.PhoneNumber,
		ContactName: c.ContactName,
		ToClient:    c.ToClient,
		ScriptID:    c.ScriptID,
		Attempt:     c.Attempts + 1,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dialer gateway returned %d", resp.StatusCode)
	}
	return nil
}
