package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleStartTraces(c *gin.Context) {
	interactionID := c.Param("id")
	started, err := s.services.AgentTraces.Start(c.Request.Context(), interactionID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"interaction_id": interactionID, "started": started})
}

func (s *Server) handleTraces(c *gin.Context) {
	snap, err := s.services.AgentTraces.Snapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStopTraces(c *gin.Context) {
	s.services.AgentTraces.Stop(c.Param("id"))
	c.Status(http.StatusNoContent)
}
