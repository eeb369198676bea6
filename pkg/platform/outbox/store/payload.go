package store

import (
	"encoding/json"
	"fmt"

	"accounting/pkg/platform/outbox"
)

// storedPayload is the JSON kept in the payload column. The request id rides
// along so the publisher can forward it as a record header.
type storedPayload struct {
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

func envelope(e outbox.Event) ([]byte, error) {
	b, err := json.Marshal(storedPayload{RequestID: e.RequestID, Data: e.Payload})
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return b, nil
}

func unwrapEnvelope(raw []byte, e *outbox.Event) error {
	var p storedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal outbox payload: %w", err)
	}
	e.RequestID = p.RequestID
	e.Payload = p.Data
	return nil
}
