package dutyleak

import "time"

// Entity carries the timestamps shared by all persisted records.
type Entity struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEntity returns an Entity with both timestamps set to now.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch refreshes UpdatedAt. Stores call it on every successful write.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
