package handler

import (
	"github.com/gin-gonic/gin"
	appinvoicing "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// ClientHandler handles client endpoints
type ClientHandler struct {
	BaseHandler
	clientService *appinvoicing.ClientService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clientService *appinvoicing.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// Create handles POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req appinvoicing.CreateClientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, client)
}

// GetByID handles GET /clients/:id
func (h *ClientHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	client, err := h.clientService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}

// List handles GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Normalize()

	clients, total, err := h.clientService.List(c.Request.Context(), shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, clients, total, req.Page, req.PageSize)
}

// Update handles PATCH /clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appinvoicing.UpdateClientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}
