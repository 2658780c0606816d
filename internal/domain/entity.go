// Package domain defines the contracts between the export pipeline and the
// application models it exports.
package domain

import (
	"context"
	"fmt"
)

// Entity is a tracked content object. Implementations are supplied by the
// application; the pipeline only needs a stable type discriminator and a
// numeric identifier to reference an entity from the queue.
type Entity interface {
	EntityType() string
	EntityID() int64
}

// ContentRef is a polymorphic reference to an Entity, persisted on queue
// entries and resolved back to the live object at export time.
type ContentRef struct {
	Type string
	ID   int64
}

// Ref builds the persistable reference for an entity.
func Ref(e Entity) ContentRef {
	return ContentRef{Type: e.EntityType(), ID: e.EntityID()}
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// Resolver turns a persisted reference back into a live entity.
// Implementations are supplied by the application's storage layer.
type Resolver interface {
	Resolve(ctx context.Context, ref ContentRef) (Entity, error)
}

// Change describes one saved modification of an entity, as reported by the
// application's change-notification hook. ChangedFields is the explicit diff
// of attribute names modified since the last persisted save; it is empty and
// ignored when Created is true.
type Change struct {
	Entity        Entity
	Created       bool
	ChangedFields []string
}

// Changed reports whether any of the given fields is in the change set.
func (c Change) Changed(fields ...string) bool {
	for _, f := range fields {
		for _, got := range c.ChangedFields {
			if f == got {
				return true
			}
		}
	}
	return false
}
