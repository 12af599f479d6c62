// Package review manages the pending-appeal queue and the reviewer's
// approve/reject decision. Every appeal is terminal after exactly one
// decision; "request revision" is a rejection carrying feedback, and the
// service owns any subsequent re-drafting.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/claimpilot/console/internal/api"
)

var (
	// ErrFeedbackRequired is returned when a rejection is attempted with
	// empty or whitespace-only feedback. No network call is made.
	ErrFeedbackRequired = errors.New("review: rejection requires feedback")
	// ErrNoSelection is returned when a decision is attempted with no
	// appeal selected.
	ErrNoSelection = errors.New("review: no appeal selected")
)

// decisionClient is the slice of the API client the controller needs.
type decisionClient interface {
	ListAppeals(ctx context.Context, statusFilter string) ([]api.Appeal, error)
	DecideAppeal(ctx context.Context, appealID string, approved bool, feedback *string) error
}

// Controller holds the pending list and the current selection. The selection
// is a key into the list, re-resolved after every refresh, so a list that
// changed underneath the reviewer never leaves a stale detached copy behind.
type Controller struct {
	mu     sync.Mutex
	client decisionClient

	appeals    []api.Appeal
	selectedID string
	feedback   string
}

// New creates a controller with an empty pending list.
func New(client decisionClient) *Controller {
	return &Controller{client: client}
}

// Refresh fetches the draft appeals. Ordering is whatever the service
// returned; no client-side re-sort. A selection whose appeal no longer
// appears in the list is cleared along with its feedback draft.
func (c *Controller) Refresh(ctx context.Context) error {
	appeals, err := c.client.ListAppeals(ctx, api.StatusDraft)
	if err != nil {
		return fmt.Errorf("review: refresh: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appeals = appeals
	if c.selectedID != "" && c.indexOfLocked(c.selectedID) < 0 {
		c.selectedID = ""
		c.feedback = ""
	}
	return nil
}

// Appeals returns the pending list in service order.
func (c *Controller) Appeals() []api.Appeal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.Appeal, len(c.appeals))
	copy(out, c.appeals)
	return out
}

// Select marks one appeal as active for inspection. Selecting a different
// appeal discards any in-progress feedback text; re-selecting the current
// one keeps it.
func (c *Controller) Select(appealID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOfLocked(appealID) < 0 {
		return fmt.Errorf("review: appeal %s is not in the pending list", appealID)
	}
	if c.selectedID != appealID {
		c.feedback = ""
	}
	c.selectedID = appealID
	return nil
}

// Selected resolves the current selection against the pending list.
func (c *Controller) Selected() (api.Appeal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexOfLocked(c.selectedID)
	if idx < 0 {
		return api.Appeal{}, false
	}
	return c.appeals[idx], true
}

// SetFeedback stores the reviewer's feedback draft for the selection.
func (c *Controller) SetFeedback(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = text
}

// Feedback returns the stored feedback draft.
func (c *Controller) Feedback() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedback
}

// Approve commits an approval for the selected appeal. Feedback is always
// sent as null when approving.
func (c *Controller) Approve(ctx context.Context) error {
	return c.decide(ctx, true)
}

// Reject commits a rejection. Feedback must be non-blank; validation happens
// locally and never reaches the wire.
func (c *Controller) Reject(ctx context.Context) error {
	c.mu.Lock()
	blank := strings.TrimSpace(c.feedback) == ""
	c.mu.Unlock()
	if blank {
		return ErrFeedbackRequired
	}
	return c.decide(ctx, false)
}

func (c *Controller) decide(ctx context.Context, approved bool) error {
	c.mu.Lock()
	idx := c.indexOfLocked(c.selectedID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNoSelection
	}
	appealID := c.selectedID
	var feedback *string
	if !approved {
		text := strings.TrimSpace(c.feedback)
		feedback = &text
	}
	c.mu.Unlock()

	if err := c.client.DecideAppeal(ctx, appealID, approved, feedback); err != nil {
		// The decision was not applied: the appeal stays listed and
		// selected, and the typed feedback survives for the retry.
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOfLocked(appealID); idx >= 0 {
		c.appeals = append(c.appeals[:idx], c.appeals[idx+1:]...)
	}
	if c.selectedID == appealID {
		c.selectedID = ""
		c.feedback = ""
	}
	return nil
}

func (c *Controller) indexOfLocked(appealID string) int {
	if appealID == "" {
		return -1
	}
	for i := range c.appeals {
		if c.appeals[i].ID == appealID {
			return i
		}
	}
	return -1
}
