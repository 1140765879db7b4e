package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	recondomain "github.com/stayloop/folio/internal/reconciliation/domain"
)

type importSettlementRecord struct {
	Amount      int64     `json:"amount"`
	Channel     string    `json:"channel"`
	ProviderRef string    `json:"provider_ref"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type importSettlementBatchRequest struct {
	Provider string                   `json:"provider"`
	Records  []importSettlementRecord `json:"records"`
}

func (s *Server) ImportSettlementBatch(c *gin.Context) {
	var req importSettlementBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	records := make([]recondomain.ImportRecord, 0, len(req.Records))
	for _, record := range req.Records {
		records = append(records, recondomain.ImportRecord{
			Amount:      record.Amount,
			Channel:     strings.TrimSpace(record.Channel),
			ProviderRef: strings.TrimSpace(record.ProviderRef),
			OccurredAt:  record.OccurredAt,
		})
	}

	resp, err := s.reconSvc.ImportBatch(c.Request.Context(), recondomain.ImportBatchRequest{
		Provider: strings.TrimSpace(req.Provider),
		Records:  records,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RunSettlementMatch(c *gin.Context) {
	resp, err := s.reconSvc.RunAutoMatch(c.Request.Context(), recondomain.RunMatchRequest{
		BatchID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SettlementSummary(c *gin.Context) {
	resp, err := s.reconSvc.Summary(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type manualMatchRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (s *Server) ManualSettlementMatch(c *gin.Context) {
	var req manualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reconSvc.ManualMatch(c.Request.Context(), recondomain.ManualMatchRequest{
		RecordID:      strings.TrimSpace(c.Param("id")),
		TransactionID: strings.TrimSpace(req.TransactionID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnmatchSettlementRecord(c *gin.Context) {
	resp, err := s.reconSvc.Unmatch(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
