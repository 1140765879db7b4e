package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/pkg/db/pagination"
)

type openFolioRequest struct {
	BookingID string         `json:"booking_id"`
	Type      string         `json:"type"`
	OrgID     string         `json:"org_id"`
	Currency  string         `json:"currency"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) OpenFolio(c *gin.Context) {
	var req openFolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.folioSvc.Open(c.Request.Context(), foliodomain.OpenFolioRequest{
		BookingID: strings.TrimSpace(req.BookingID),
		Type:      strings.TrimSpace(req.Type),
		OrgID:     strings.TrimSpace(req.OrgID),
		Currency:  strings.TrimSpace(req.Currency),
		Metadata:  req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFolio(c *gin.Context) {
	resp, err := s.folioSvc.GetByID(c.Request.Context(), foliodomain.GetFolioRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFolios(c *gin.Context) {
	var query struct {
		pagination.Pagination
		BookingID   string `form:"booking_id"`
		Type        string `form:"type"`
		Status      string `form:"status"`
		CreatedFrom string `form:"created_from"`
		CreatedTo   string `form:"created_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "invalid created_from"))
		return
	}

	createdTo, err := parseOptionalTime(query.CreatedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "invalid created_to"))
		return
	}

	resp, err := s.folioSvc.List(c.Request.Context(), foliodomain.ListFolioRequest{
		PageToken:   query.PageToken,
		PageSize:    query.PageSize,
		BookingID:   strings.TrimSpace(query.BookingID),
		Type:        strings.TrimSpace(query.Type),
		Status:      strings.TrimSpace(query.Status),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFolioTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.poster.ListByFolio(c.Request.Context(), ledgerdomain.ListTransactionRequest{
		FolioID:   strings.TrimSpace(c.Param("id")),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type closeFolioRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) CloseFolio(c *gin.Context) {
	var req closeFolioRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.folioSvc.Close(c.Request.Context(), foliodomain.CloseFolioRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Notes: strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type reopenFolioRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) ReopenFolio(c *gin.Context) {
	var req reopenFolioRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.folioSvc.Reopen(c.Request.Context(), foliodomain.ReopenFolioRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
