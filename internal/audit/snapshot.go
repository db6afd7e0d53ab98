package audit

import (
	"encoding/json"
	"fmt"
)

// Snapshotter is the capability an entity needs to appear in the audit trail.
// Implementations return a flat map of scalar fields; nested entities
// contribute only their identifiers. The explicit whitelist guarantees
// termination on cyclically linked domain entities (tenant ↔ users ↔
// bookings) where naive reflective traversal would not.
type Snapshotter interface {
	AuditSnapshot() map[string]any
}

// Serialize produces the canonical snapshot encoding stored in a Record.
func Serialize(entity Snapshotter) (string, error) {
	if entity == nil {
		return "", fmt.Errorf("nil entity")
	}
	snapshot := entity.AuditSnapshot()
	if snapshot == nil {
		return "", fmt.Errorf("entity returned nil snapshot")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}
