package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nadir-hamid/fst-exams-api/internal/service"
	"github.com/nadir-hamid/fst-exams-api/pkg/response"
)

// RoomHandler serves the available-room pool.
type RoomHandler struct {
	requests *service.RequestService
}

// NewRoomHandler creates a new handler.
func NewRoomHandler(requests *service.RequestService) *RoomHandler {
	return &RoomHandler{requests: requests}
}

// ListAvailable godoc
// @Summary Available rooms
// @Description Rooms flagged available for exam scheduling
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /rooms [get]
func (h *RoomHandler) ListAvailable(c *gin.Context) {
	rooms, err := h.requests.AvailableRooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}
