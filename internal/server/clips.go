package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	moderationdomain "github.com/smallbiznis/cliprail/internal/moderation/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
)

type submitClipRequest struct {
	OfferID  snowflake.ID `json:"offer_id" binding:"required"`
	VideoURL string       `json:"video_url" binding:"required"`
}

func (s *Server) SubmitClip(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req submitClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.moderationSvc.Submit(c.Request.Context(), moderationdomain.SubmitRequest{
		UserID:   user.ID,
		OfferID:  req.OfferID,
		VideoURL: strings.TrimSpace(req.VideoURL),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("clip_id", resp.ClipID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type listClipsQuery struct {
	pagination.Pagination
	Status string `form:"status"`
}

// ListMyClips lists the acting creator's clips.
func (s *Server) ListMyClips(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	s.listClips(c, user.ID)
}

// ListClips is the moderation queue view; any user or status.
func (s *Server) ListClips(c *gin.Context) {
	userID, err := optionalIDQuery(c, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listClips(c, userID)
}

func (s *Server) listClips(c *gin.Context, userID snowflake.ID) {
	var query listClipsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	offerID, err := optionalIDQuery(c, "offer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.clipSvc.List(c.Request.Context(), clipdomain.ListClipRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		UserID:    userID,
		OfferID:   offerID,
		Status:    clipdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClip(c *gin.Context) {
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

	clip, err := s.clipSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	// Other creators' clips are hidden rather than forbidden.
	if clip.UserID != user.ID && !user.IsAdmin {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clip})
}

type approveClipRequest struct {
	Views int64 `json:"views" binding:"gte=0"`
}

func (s *Server) ApproveClip(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req approveClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.moderationSvc.Approve(c.Request.Context(), moderationdomain.ApproveRequest{
		ClipID: id,
		Views:  req.Views,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("clip_id", id.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type rejectClipRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RejectClip(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req rejectClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	if err := s.moderationSvc.Reject(c.Request.Context(), moderationdomain.RejectRequest{
		ClipID: id,
		Reason: req.Reason,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("clip_id", id.String())
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"clip_id": id, "status": clipdomain.StatusRejected}})
}
