package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gridspace/gridspace-server/internal/store"
)

// SpaceHandlers provides HTTP handlers for space management endpoints.
type SpaceHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewSpaceHandlers creates a new space handlers instance.
func NewSpaceHandlers(st store.Store, logger *zerolog.Logger) *SpaceHandlers {
	return &SpaceHandlers{
		store: st,
		log:   logger,
	}
}

// CreateSpaceRequest represents the create space request body.
type CreateSpaceRequest struct {
	Name   string `json:"name" binding:"required,min=1,max=64"`
	Width  int    `json:"width" binding:"required,min=1,max=1000"`
	Height int    `json:"height" binding:"required,min=1,max=1000"`
}

// SpaceResponse represents a space in API responses.
type SpaceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// CreateSpace handles space creation.
// POST /api/spaces
func (h *SpaceHandlers) CreateSpace(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create space request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	space, err := h.store.CreateSpace(c.Request.Context(), req.Name, req.Width, req.Height, userID)
	if err != nil {
		h.log.Error().Err(err).Str("space_name", req.Name).Msg("failed to create space")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("space_id", space.ID).Str("space_name", space.Name).
		Str("owner_id", userID).Msg("space created")
	c.JSON(http.StatusCreated, spaceResponse(space))
}

// GetSpace handles fetching a single space.
// GET /api/spaces/:id
func (h *SpaceHandlers) GetSpace(c *gin.Context) {
	space, err := h.store.GetSpaceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "space not found"})
			return
		}
		h.log.Error().Err(err).Str("space_id", c.Param("id")).Msg("failed to get space")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, spaceResponse(space))
}

// ListSpaces handles listing all spaces.
// GET /api/spaces
func (h *SpaceHandlers) ListSpaces(c *gin.Context) {
	spaces, err := h.store.ListSpaces(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list spaces")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]SpaceResponse, 0, len(spaces))
	for _, space := range spaces {
		response = append(response, spaceResponse(space))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteSpace handles space deletion by its owner.
// DELETE /api/spaces/:id
func (h *SpaceHandlers) DeleteSpace(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.store.DeleteSpace(c.Request.Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "space not found or not owned"})
			return
		}
		h.log.Error().Err(err).Str("space_id", c.Param("id")).Msg("failed to delete space")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func spaceResponse(space *store.Space) SpaceResponse {
	return SpaceResponse{
		ID:        space.ID,
		Name:      space.Name,
		Width:     space.Width,
		Height:    space.Height,
		OwnerID:   space.OwnerID,
		CreatedAt: space.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
