package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// PayloadVersion is the current on-disk payload format. Bump on breaking
// format changes; Decode rejects versions it does not know, and callers
// treat the payload as absent.
const PayloadVersion = 1

// Envelope wraps every persisted payload so the format can evolve safely.
type Envelope struct {
	Version int             `json:"version"`
	SavedAt int64           `json:"saved_at"` // epoch ms
	Data    json.RawMessage `json:"data"`
}

// Encode wraps v in a versioned envelope and marshals it.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		Version: PayloadVersion,
		SavedAt: time.Now().UnixMilli(),
		Data:    data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return raw, nil
}

// Decode unwraps a versioned envelope into v. A corrupt or unknown-version
// payload returns an error; callers recover by treating the key as empty.
func Decode(raw []byte, v any) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != PayloadVersion {
		return fmt.Errorf("unsupported payload version %d", env.Version)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
