package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
)

type createOfferRequest struct {
	Name         string          `json:"name" binding:"required"`
	Title        string          `json:"title"`
	CPMRate      decimal.Decimal `json:"cpm_rate"`
	TotalBudget  decimal.Decimal `json:"total_budget"`
	Platforms    []string        `json:"platforms"`
	Requirements string          `json:"requirements"`
}

func (s *Server) CreateOffer(c *gin.Context) {
	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.offerSvc.Create(c.Request.Context(), offerdomain.CreateOfferRequest{
		Name:         strings.TrimSpace(req.Name),
		Title:        strings.TrimSpace(req.Title),
		CPMRate:      req.CPMRate,
		TotalBudget:  req.TotalBudget,
		Platforms:    req.Platforms,
		Requirements: strings.TrimSpace(req.Requirements),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOffers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Active string `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.offerSvc.List(c.Request.Context(), offerdomain.ListOfferRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Active:    active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOffer(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.offerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) JoinOffer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.offerSvc.Join(c.Request.Context(), id, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PauseOffer(c *gin.Context) {
	s.setOfferActive(c, false)
}

func (s *Server) ResumeOffer(c *gin.Context) {
	s.setOfferActive(c, true)
}

func (s *Server) setOfferActive(c *gin.Context, active bool) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.offerSvc.SetActive(c.Request.Context(), id, active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOfferSummary(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dashboardSvc.OfferSummary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
