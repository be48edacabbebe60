// Package stats fetches public engagement figures for a video URL.
package stats

import (
	"context"
	"errors"
)

// ErrUnavailable means no provider could answer. Callers treat it as
// transient and try again next cycle.
var ErrUnavailable = errors.New("stats_unavailable")

// Stats is a point-in-time snapshot of a public video.
type Stats struct {
	Views        int64  `json:"view_count"`
	Likes        int64  `json:"like_count"`
	Comments     int64  `json:"comment_count"`
	Description  string `json:"description"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail"`
}

type Provider interface {
	Name() string
	FetchVideoStats(ctx context.Context, url string) (*Stats, error)
}

// Fetch normalizes a nil result into ErrUnavailable.
func Fetch(ctx context.Context, p Provider, url string) (*Stats, error) {
	if p == nil {
		return nil, ErrUnavailable
	}
	s, err := p.FetchVideoStats(ctx, url)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrUnavailable
	}
	return s, nil
}

// videoInfo is the wire shape shared by yt-dlp and the HTTP API. Counts may
// be null when a platform hides them.
type videoInfo struct {
	ViewCount    *int64 `json:"view_count"`
	LikeCount    *int64 `json:"like_count"`
	CommentCount *int64 `json:"comment_count"`
	Description  string `json:"description"`
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
}

func (v videoInfo) toStats() *Stats {
	return &Stats{
		Views:        deref(v.ViewCount),
		Likes:        deref(v.LikeCount),
		Comments:     deref(v.CommentCount),
		Description:  v.Description,
		Title:        v.Title,
		ThumbnailURL: v.Thumbnail,
	}
}

func deref(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
