package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	staydomain "github.com/stayloop/folio/internal/stay/domain"
)

type createStayRequest struct {
	GuestName        string `json:"guest_name"`
	ContractedAmount int64  `json:"contracted_amount"`
	Currency         string `json:"currency"`
}

func (s *Server) CreateStay(c *gin.Context) {
	var req createStayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.staySvc.Create(c.Request.Context(), staydomain.CreateStayRequest{
		GuestName:        strings.TrimSpace(req.GuestName),
		ContractedAmount: req.ContractedAmount,
		Currency:         strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStay(c *gin.Context) {
	resp, err := s.staySvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckInStay(c *gin.Context) {
	resp, err := s.staySvc.CheckIn(c.Request.Context(), staydomain.CheckInRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckOutStay(c *gin.Context) {
	resp, err := s.staySvc.CheckOut(c.Request.Context(), staydomain.CheckOutRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
