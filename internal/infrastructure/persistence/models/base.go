package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// Record holds the identity and timestamp columns every table carries
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Entity returns the columns as a domain entity
func (r *Record) Entity() shared.BaseEntity {
	return shared.BaseEntity{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

// SetEntity copies e into the record
func (r *Record) SetEntity(e shared.BaseEntity) {
	r.ID, r.CreatedAt, r.UpdatedAt = e.ID, e.CreatedAt, e.UpdatedAt
}

// VersionedRecord adds the optimistic-lock counter used by aggregate tables.
// Writers compare it in the WHERE clause before bumping it.
type VersionedRecord struct {
	Record
	Version int `gorm:"not null;default:1"`
}

// Root returns the columns as a domain aggregate root
func (r *VersionedRecord) Root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{BaseEntity: r.Entity(), Version: r.Version}
}

// SetRoot copies a into the record
func (r *VersionedRecord) SetRoot(a shared.BaseAggregateRoot) {
	r.SetEntity(a.BaseEntity)
	r.Version = a.Version
}
