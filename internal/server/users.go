package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
)

type registerUserRequest struct {
	ExternalID   string `json:"external_id" binding:"required"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	ReferralCode string `json:"referral_code"`
}

func (s *Server) RegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.userSvc.Register(c.Request.Context(), userdomain.RegisterRequest{
		ExternalID:   strings.TrimSpace(req.ExternalID),
		Username:     strings.TrimSpace(req.Username),
		Name:         strings.TrimSpace(req.Name),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) MyDashboard(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.dashboardSvc.UserDashboard(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MyTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		pagination.Pagination
		Type string `form:"type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.ledgerSvc.ListByUser(c.Request.Context(), ledgerdomain.ListTransactionRequest{
		UserID:    user.ID,
		Type:      ledgerdomain.Type(strings.ToLower(strings.TrimSpace(query.Type))),
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type withdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination" binding:"required"`
}

func (s *Server) RequestWithdrawal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.ledgerSvc.RequestWithdrawal(c.Request.Context(), ledgerdomain.WithdrawalRequest{
		UserID:      user.ID,
		Amount:      req.Amount,
		Destination: strings.TrimSpace(req.Destination),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
