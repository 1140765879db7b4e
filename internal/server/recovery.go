package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	recoverydomain "github.com/stayloop/folio/internal/recovery/domain"
)

type runRecoveryRequest struct {
	DryRun bool `json:"dry_run"`
}

func (s *Server) RunRecovery(c *gin.Context) {
	var req runRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recoverySvc.Run(c.Request.Context(), recoverydomain.RunRequest{
		DryRun: req.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
