package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freedkr/moonshot-translate/internal/database"
	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/services/api-server/middleware"
)

// ClientHandlers is a thin CRUD surface over database.MaterialStore's
// client table. Client ownership/auth is an out-of-scope external
// collaborator (spec §1); these handlers trust whatever owner_id the
// caller supplies.
type ClientHandlers struct {
	store database.MaterialStore
}

// NewClientHandlers builds a ClientHandlers.
func NewClientHandlers(store database.MaterialStore) *ClientHandlers {
	return &ClientHandlers{store: store}
}

// CreateClient handles POST /clients.
func (h *ClientHandlers) CreateClient(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		OwnerID string `json:"owner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client := &model.Client{
		ID:      uuid.NewString(),
		Name:    req.Name,
		OwnerID: req.OwnerID,
	}
	if err := h.store.InsertClient(c.Request.Context(), client); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// ListClients handles GET /clients.
func (h *ClientHandlers) ListClients(c *gin.Context) {
	ownerID := c.Query("owner_id")
	clients, err := h.store.ListClients(c.Request.Context(), ownerID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// GetClient handles GET /clients/:client_id.
func (h *ClientHandlers) GetClient(c *gin.Context) {
	client, err := h.store.GetClient(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// UpdateClient handles PUT /clients/:client_id.
func (h *ClientHandlers) UpdateClient(c *gin.Context) {
	ctx := c.Request.Context()
	client, err := h.store.GetClient(ctx, c.Param("client_id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Archived *bool   `json:"archived"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Archived != nil {
		client.Archived = *req.Archived
	}

	if err := h.store.UpdateClient(ctx, client); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient handles DELETE /clients/:client_id.
func (h *ClientHandlers) DeleteClient(c *gin.Context) {
	if err := h.store.DeleteClient(c.Request.Context(), c.Param("client_id")); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
