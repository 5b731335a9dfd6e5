package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/datatypes"
)

// hashPayload fixes field order for the canonical encoding.
type hashPayload struct {
	Sequence       uint64          `json:"sequence"`
	ActorID        string          `json:"actor_id"`
	ActionType     string          `json:"action_type"`
	EntityID       string          `json:"entity_id"`
	BeforeSnapshot json.RawMessage `json:"before"`
	AfterSnapshot  json.RawMessage `json:"after"`
	Source         string          `json:"source"`
	Timestamp      string          `json:"timestamp"`
	PreviousHash   string          `json:"previous_hash"`
}

// ComputeHash returns the hex SHA-256 of the entry's canonical encoding followed by its previous hash.
func ComputeHash(e *models.AuditEntry) (string, error) {
	before, errBefore := canonicalJSON(e.BeforeSnapshot)
	if errBefore != nil {
		return "", fmt.Errorf("audit: canonical before snapshot: %w", errBefore)
	}
	after, errAfter := canonicalJSON(e.AfterSnapshot)
	if errAfter != nil {
		return "", fmt.Errorf("audit: canonical after snapshot: %w", errAfter)
	}

	payload, errMarshal := json.Marshal(hashPayload{
		Sequence:       e.Sequence,
		ActorID:        e.ActorID,
		ActionType:     e.ActionType,
		EntityID:       e.EntityID,
		BeforeSnapshot: before,
		AfterSnapshot:  after,
		Source:         e.Source,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		PreviousHash:   e.PreviousHash,
	})
	if errMarshal != nil {
		return "", fmt.Errorf("audit: marshal hash payload: %w", errMarshal)
	}

	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(e.PreviousHash))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-encodes raw with sorted object keys and no insignificant whitespace.
// Numbers keep their literal text. Empty input encodes as null.
func canonicalJSON(raw []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if errDecode := dec.Decode(&v); errDecode != nil {
		return nil, errDecode
	}
	out, errMarshal := json.Marshal(v)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return out, nil
}

// snapshot encodes v for storage. A nil value stores no snapshot.
func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		canonical, err := canonicalJSON(raw)
		return datatypes.JSON(canonical), err
	}
	raw, errMarshal := json.Marshal(v)
	if errMarshal != nil {
		return nil, errMarshal
	}
	canonical, err := canonicalJSON(raw)
	return datatypes.JSON(canonical), err
}
