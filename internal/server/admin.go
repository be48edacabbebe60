package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) GetOverview(c *gin.Context) {
	resp, err := s.dashboardSvc.Overview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RunAccrual triggers a cycle now. It shares the scheduler's lock, so a
// cycle already in flight returns 409.
func (s *Server) RunAccrual(c *gin.Context) {
	if s.accrual == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	result, err := s.accrual.RunAccrualCycle(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if s.log != nil {
		s.log.Info("accrual.manual_run",
			zap.Int("clips_updated", result.ClipsUpdated),
			zap.Int("failed", result.Failed),
		)
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CompleteWithdrawal(c *gin.Context) {
	s.resolveWithdrawal(c, true)
}

func (s *Server) RejectWithdrawal(c *gin.Context) {
	s.resolveWithdrawal(c, false)
}

func (s *Server) resolveWithdrawal(c *gin.Context, approve bool) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.ResolveWithdrawal(c.Request.Context(), id, approve)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.Reconcile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
