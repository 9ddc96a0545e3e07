package invoicing

import (
	"net/mail"
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Client is the party invoices are issued to. Email doubles as the
// notification address for reminders.
type Client struct {
	shared.BaseAggregateRoot
	Name    string
	Email   string
	Phone   string
	Address string
}

// NewClient creates a validated client
func NewClient(name, email, phone, address string) (*Client, error) {
	c := &Client{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		Email:             normalizeEmail(email),
		Phone:             strings.TrimSpace(phone),
		Address:           strings.TrimSpace(address),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) validate() error {
	if c.Name == "" {
		return ErrInvalidClientName
	}
	if !validEmail(c.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// ClientUpdate is a partial edit of a client. Nil fields are left unchanged.
type ClientUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// IsEmpty reports whether the update carries no fields
func (u ClientUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.Address == nil
}

// Apply validates and applies the update field by field. The client is
// left untouched when any field is invalid.
func (c *Client) Apply(u ClientUpdate, now time.Time) error {
	if u.IsEmpty() {
		return ErrEmptyUpdate
	}
	next := *c
	if u.Name != nil {
		next.Name = strings.TrimSpace(*u.Name)
	}
	if u.Email != nil {
		next.Email = normalizeEmail(*u.Email)
	}
	if u.Phone != nil {
		next.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Address != nil {
		next.Address = strings.TrimSpace(*u.Address)
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.Touch(now)
	next.IncrementVersion()
	*c = next
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
