package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
)

type postingRouting struct {
	BookingID  string `json:"booking_id"`
	Category   string `json:"category"`
	OrgID      string `json:"org_id"`
	Department string `json:"department"`
}

type postTransactionRequest struct {
	FolioID       string          `json:"folio_id"`
	Routing       *postingRouting `json:"routing"`
	Type          string          `json:"type"`
	Amount        int64           `json:"amount"`
	Description   string          `json:"description"`
	Department    string          `json:"department"`
	Channel       string          `json:"channel"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	Metadata      map[string]any  `json:"metadata"`
}

func (s *Server) PostTransaction(c *gin.Context) {
	var req postTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainReq := ledgerdomain.PostRequest{
		FolioID:       strings.TrimSpace(req.FolioID),
		Type:          strings.TrimSpace(req.Type),
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		Department:    strings.TrimSpace(req.Department),
		Channel:       strings.TrimSpace(req.Channel),
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		ReferenceID:   strings.TrimSpace(req.ReferenceID),
		Metadata:      req.Metadata,
	}
	if req.Routing != nil {
		domainReq.Routing = &ledgerdomain.RoutingContext{
			BookingID:  strings.TrimSpace(req.Routing.BookingID),
			Category:   strings.TrimSpace(req.Routing.Category),
			OrgID:      strings.TrimSpace(req.Routing.OrgID),
			Department: strings.TrimSpace(req.Routing.Department),
		}
	}

	resp, err := s.poster.Post(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": resp})
}

type postRebateRequest struct {
	FolioID       string `json:"folio_id"`
	Mode          string `json:"mode"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
}

func (s *Server) PostRebate(c *gin.Context) {
	var req postRebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.poster.PostRebate(c.Request.Context(), ledgerdomain.RebateRequest{
		FolioID:       strings.TrimSpace(req.FolioID),
		Mode:          ledgerdomain.RebateMode(strings.TrimSpace(req.Mode)),
		Amount:        req.Amount,
		Reason:        strings.TrimSpace(req.Reason),
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		ReferenceID:   strings.TrimSpace(req.ReferenceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
