package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	batchdomain "github.com/stayloop/folio/internal/batch/domain"
)

type openCashSessionRequest struct {
	OpeningBalance int64  `json:"opening_balance"`
	Notes          string `json:"notes"`
}

func (s *Server) OpenCashSession(c *gin.Context) {
	var req openCashSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.batchSvc.OpenSession(c.Request.Context(), batchdomain.OpenSessionRequest{
		OpeningBalance: req.OpeningBalance,
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type closeCashSessionRequest struct {
	DeclaredBalance int64  `json:"declared_balance"`
	Notes           string `json:"notes"`
}

func (s *Server) CloseCashSession(c *gin.Context) {
	var req closeCashSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.batchSvc.CloseSession(c.Request.Context(), batchdomain.CloseSessionRequest{
		SessionID:       strings.TrimSpace(c.Param("id")),
		DeclaredBalance: req.DeclaredBalance,
		Notes:           strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBatchSnapshot(c *gin.Context) {
	resp, err := s.batchSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type runNightAuditRequest struct {
	AuditDate string `json:"audit_date"`
}

func (s *Server) RunNightAudit(c *gin.Context) {
	var req runNightAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.batchSvc.RunNightAudit(c.Request.Context(), batchdomain.RunNightAuditRequest{
		AuditDate: strings.TrimSpace(req.AuditDate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
