package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps common to every entity
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity returns an entity with a fresh id, created now (UTC)
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch records a modification at now
func (e *BaseEntity) Touch(now time.Time) {
	e.UpdatedAt = now
}

// BaseAggregateRoot adds an optimistic-lock version to BaseEntity.
// Version starts at 1 and is bumped by every persisted mutation; stores
// compare it in their UPDATE ... WHERE version = ? guard.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
}

// NewBaseAggregateRoot returns a root at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion bumps the version after a persisted mutation
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}
