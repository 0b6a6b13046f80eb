// Package feed paginates beats, merges comment lists, and dispatches
// like/comment mutations to the backend. Like state is applied
// optimistically and reconciled against the server's answer.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"spitbox/client"
	"spitbox/logger"
	"spitbox/model"
)

var (
	// ErrCommentFetch means a comment list could not be loaded. Playback of
	// the beat is unaffected.
	ErrCommentFetch = errors.New("failed to fetch comments")
	// ErrCommentAdd means a comment submission failed.
	ErrCommentAdd = errors.New("failed to add comment")
)

// API is the slice of the REST client the controller needs.
type API interface {
	Beats(ctx context.Context, page, perPage int) (*model.FeedPage, error)
	ToggleLike(ctx context.Context, beatID int64) (*model.Beat, error)
	Comments(ctx context.Context, beatID int64) ([]model.Comment, error)
	AddComment(ctx context.Context, beatID int64, content string, timestamp float64) (*model.Comment, error)
	DeleteComment(ctx context.Context, commentID int64) error
}

var _ API = (*client.Client)(nil)

// Controller holds the client-side view of the feed.
type Controller struct {
	api     API
	perPage int

	mu    sync.Mutex
	beats []model.Beat
	page  int
	pages int
	total int
}

// NewController creates a feed over the given API.
func NewController(api API, perPage int) *Controller {
	return &Controller{api: api, perPage: perPage}
}

// Beats returns a snapshot of the loaded beats.
func (c *Controller) Beats() []model.Beat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Beat, len(c.beats))
	copy(out, c.beats)
	return out
}

// Total returns the server-reported beat count from the last fetch.
func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// HasMore reports whether another page can be fetched.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page < c.pages
}

// Refresh reloads the feed from the first page. Local optimistic state is
// discarded in favor of the server's view.
func (c *Controller) Refresh(ctx context.Context) error {
	page, err := c.api.Beats(ctx, 1, c.perPage)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.beats = page.Beats
	c.page = page.CurrentPage
	c.pages = page.Pages
	c.total = page.Total
	return nil
}

// LoadMore appends the next page. Beats already present (a refresh racing
// a pagination) are skipped rather than duplicated.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	next := c.page + 1
	c.mu.Unlock()

	page, err := c.api.Beats(ctx, next, c.perPage)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[int64]struct{}, len(c.beats))
	for _, b := range c.beats {
		seen[b.ID] = struct{}{}
	}
	for _, b := range page.Beats {
		if _, dup := seen[b.ID]; !dup {
			c.beats = append(c.beats, b)
		}
	}
	c.page = page.CurrentPage
	c.pages = page.Pages
	c.total = page.Total
	return nil
}

// ToggleLike flips the like flag locally first so the UI answers
// immediately, then reconciles with the server's authoritative beat. On
// failure the optimistic change is rolled back.
func (c *Controller) ToggleLike(ctx context.Context, beatID int64) error {
	c.mu.Lock()
	idx := c.indexLocked(beatID)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("beat %d not in feed", beatID)
	}
	c.applyLikeLocked(idx, !c.beats[idx].LikedByUser)
	c.mu.Unlock()

	beat, err := c.api.ToggleLike(ctx, beatID)
	if err != nil {
		c.mu.Lock()
		if idx := c.indexLocked(beatID); idx >= 0 {
			c.applyLikeLocked(idx, !c.beats[idx].LikedByUser)
		}
		c.mu.Unlock()
		logger.Warn("like toggle rolled back", logger.Int64("beatId", beatID), logger.ErrorField(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(beatID); idx >= 0 {
		comments := c.beats[idx].Comments // mutation response carries no comments
		c.beats[idx] = *beat
		c.beats[idx].Comments = comments
	}
	return nil
}

func (c *Controller) indexLocked(beatID int64) int {
	for i := range c.beats {
		if c.beats[i].ID == beatID {
			return i
		}
	}
	return -1
}

func (c *Controller) applyLikeLocked(idx int, liked bool) {
	b := &c.beats[idx]
	if liked == b.LikedByUser {
		return
	}
	b.LikedByUser = liked
	if liked {
		b.LikesCount++
	} else if b.LikesCount > 0 {
		b.LikesCount--
	}
}

// LoadComments fetches a beat's comments and merges them onto the local
// beat. The merged list replaces the old one wholesale: comments are
// append-only server-side so the fetch is always a superset.
func (c *Controller) LoadComments(ctx context.Context, beatID int64) ([]model.Comment, error) {
	comments, err := c.api.Comments(ctx, beatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommentFetch, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(beatID); idx >= 0 {
		c.beats[idx].Comments = comments
	}
	return comments, nil
}

// AddComment submits a comment at the given audio offset and merges the
// created comment locally.
func (c *Controller) AddComment(ctx context.Context, beatID int64, content string, timestamp float64) (*model.Comment, error) {
	comment, err := c.api.AddComment(ctx, beatID, content, timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommentAdd, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(beatID); idx >= 0 {
		c.beats[idx].Comments = append(c.beats[idx].Comments, *comment)
	}
	return comment, nil
}

// DeleteComment removes a comment and drops it from the local beat.
func (c *Controller) DeleteComment(ctx context.Context, beatID, commentID int64) error {
	if err := c.api.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(beatID); idx >= 0 {
		kept := c.beats[idx].Comments[:0]
		for _, cm := range c.beats[idx].Comments {
			if cm.ID != commentID {
				kept = append(kept, cm)
			}
		}
		c.beats[idx].Comments = kept
	}
	return nil
}
