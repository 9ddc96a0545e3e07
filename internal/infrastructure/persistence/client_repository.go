package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormClientRepository implements invoicing.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// Create inserts a new client
func (r *GormClientRepository) Create(ctx context.Context, c *invoicing.Client) error {
	if err := r.db.WithContext(ctx).Create(models.ClientModelFromDomain(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return invoicing.ErrEmailTaken
		}
		return classifyError(err)
	}
	return nil
}

// FindByID finds a client by its ID
func (r *GormClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrClientNotFound
		}
		return nil, classifyError(err)
	}
	return model.ToDomain(), nil
}

// FindByEmail finds a client by email address
func (r *GormClientRepository) FindByEmail(ctx context.Context, email string) (*invoicing.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicing.ErrClientNotFound
		}
		return nil, classifyError(err)
	}
	return model.ToDomain(), nil
}

// List returns a page of clients and the total number matching the filter
func (r *GormClientRepository) List(ctx context.Context, filter shared.Filter) ([]invoicing.Client, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ClientModel{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, classifyError(err)
	}

	var clientModels []models.ClientModel
	if err := applyPaging(query, filter, ClientSortFields).Find(&clientModels).Error; err != nil {
		return nil, 0, classifyError(err)
	}

	clients := make([]invoicing.Client, len(clientModels))
	for i, model := range clientModels {
		clients[i] = *model.ToDomain()
	}
	return clients, total, nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormClientRepository) SaveWithLock(ctx context.Context, c *invoicing.Client) error {
	result := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Updates(map[string]any{
			"name":       c.Name,
			"email":      c.Email,
			"phone":      c.Phone,
			"address":    c.Address,
			"version":    c.Version,
			"updated_at": c.UpdatedAt,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return invoicing.ErrEmailTaken
		}
		return classifyError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormClientRepository implements ClientRepository
var _ invoicing.ClientRepository = (*GormClientRepository)(nil)
