package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
)

// ClientService handles client-related business operations
type ClientService struct {
	clientRepo invoicing.ClientRepository
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo invoicing.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo}
}

// Create creates a new client
func (s *ClientService) Create(ctx context.Context, req CreateClientRequest) (*ClientResponse, error) {
	client, err := invoicing.NewClient(req.Name, req.Email, req.Phone, req.Address)
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, client.Email, uuid.Nil); err != nil {
		return nil, err
	}

	// the unique index still decides a race between two creates
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}

	resp := ToClientResponse(client)
	return &resp, nil
}

// GetByID returns a client by ID
func (s *ClientService) GetByID(ctx context.Context, id uuid.UUID) (*ClientResponse, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(client)
	return &resp, nil
}

// List returns a page of clients
func (s *ClientService) List(ctx context.Context, filter shared.Filter) ([]ClientResponse, int64, error) {
	clients, total, err := s.clientRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]ClientResponse, len(clients))
	for i := range clients {
		resp[i] = ToClientResponse(&clients[i])
	}
	return resp, total, nil
}

// Update applies a partial edit to a client
func (s *ClientService) Update(ctx context.Context, id uuid.UUID, req UpdateClientRequest) (*ClientResponse, error) {
	update := req.toDomain()
	if update.IsEmpty() {
		return nil, invoicing.ErrEmptyUpdate
	}

	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := client.Apply(update, time.Now().UTC()); err != nil {
		return nil, err
	}

	if update.Email != nil {
		if err := s.ensureEmailFree(ctx, client.Email, client.ID); err != nil {
			return nil, err
		}
	}

	if err := s.clientRepo.SaveWithLock(ctx, client); err != nil {
		return nil, err
	}

	resp := ToClientResponse(client)
	return &resp, nil
}

// ensureEmailFree fails with ErrEmailTaken when another client owns email
func (s *ClientService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.clientRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, invoicing.ErrClientNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return invoicing.ErrEmailTaken
	}
	return nil
}
