package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
)

type createRoutingRuleRequest struct {
	Category        string `json:"category"`
	OrgID           string `json:"org_id"`
	Department      string `json:"department"`
	TargetType      string `json:"target_type"`
	Priority        int    `json:"priority"`
	AutoCreateFolio bool   `json:"auto_create_folio"`
}

func (s *Server) CreateRoutingRule(c *gin.Context) {
	var req createRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.routingSvc.CreateRule(c.Request.Context(), routingdomain.CreateRuleRequest{
		Category:        strings.TrimSpace(req.Category),
		OrgID:           strings.TrimSpace(req.OrgID),
		Department:      strings.TrimSpace(req.Department),
		TargetType:      strings.TrimSpace(req.TargetType),
		Priority:        req.Priority,
		AutoCreateFolio: req.AutoCreateFolio,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRoutingRules(c *gin.Context) {
	resp, err := s.routingSvc.ListRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateRoutingRule(c *gin.Context) {
	if err := s.routingSvc.DeactivateRule(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deactivated": true}})
}

type resolveRoutingRequest struct {
	Category   string `json:"category"`
	OrgID      string `json:"org_id"`
	Department string `json:"department"`
}

func (s *Server) ResolveRouting(c *gin.Context) {
	var req resolveRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.routingSvc.Resolve(c.Request.Context(), routingdomain.ResolveRequest{
		Category:   strings.TrimSpace(req.Category),
		OrgID:      strings.TrimSpace(req.OrgID),
		Department: strings.TrimSpace(req.Department),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
