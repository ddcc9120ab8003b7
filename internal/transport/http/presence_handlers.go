package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
)

// PresenceHandlers exposes the live roster over REST.
type PresenceHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewPresenceHandlers creates a new presence handlers instance.
func NewPresenceHandlers(hub *core.Hub, logger *zerolog.Logger) *PresenceHandlers {
	return &PresenceHandlers{hub: hub, log: logger}
}

// RosterResponse is the roster snapshot plus the online count.
type RosterResponse struct {
	Count       int                          `json:"count"`
	Connections map[string]proto.RosterEntry `json:"connections"`
}

// Roster returns every known connection with its identity and state.
// GET /api/roster
func (h *PresenceHandlers) Roster(c *gin.Context) {
	roster := h.hub.Roster()

	response := RosterResponse{Connections: make(map[string]proto.RosterEntry, len(roster))}
	for id, entry := range roster {
		if entry.Online {
			response.Count++
		}
		response.Connections[id] = proto.RosterEntry{Identity: entry.Identity, Online: entry.Online}
	}

	h.log.Debug().Int("online", response.Count).Int("known", len(roster)).Msg("roster listed")
	c.JSON(http.StatusOK, response)
}
