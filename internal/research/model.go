package research

import (
	"errors"
	"fmt"
	"time"

	"github.com/reseich/reseich-api/internal/ratelimit"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"

	TypePublic  = "public"
	TypePrivate = "private"
)

var (
	ErrNotFound           = errors.New("research item not found")
	ErrInvalidID          = errors.New("invalid research id")
	ErrInvalidDepth       = errors.New("unknown research depth")
	ErrInvalidStatus      = errors.New("unknown research status")
	ErrBackwardTransition = errors.New("research status cannot move backwards")
	ErrTerminal           = errors.New("research item already finished")
)

// InsufficientCreditsError is returned when a wallet cannot pay for a request.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// DemoLimitError is returned when a demo IP has used its quota.
type DemoLimitError struct {
	Usage ratelimit.Usage
}

func (e *DemoLimitError) Error() string {
	return fmt.Sprintf("demo limit reached: %d of %d used", e.Usage.Used, e.Usage.Limit)
}

// statusRank orders statuses; both terminal statuses share the top rank.
var statusRank = map[string]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

func isTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Item is the API representation of a research item.
type Item struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Query         string     `json:"query"`
	Depth         string     `json:"depth"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Progress      int32      `json:"progress"`
	ResultContent *string    `json:"result_content"`
	ResultFileURL *string    `json:"result_file_url"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	IsDemo        bool       `json:"is_demo"`
	CreditsCost   int32      `json:"credits_cost"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toItem(r pgdb.ResearchItem) Item {
	item := Item{
		ID:          r.ID.String(),
		Title:       r.Title,
		Query:       r.Query,
		Depth:       r.Depth,
		Type:        r.Type,
		Status:      r.Status,
		Progress:    r.Progress,
		IsDemo:      !r.UserID.Valid,
		CreditsCost: r.CreditsCost,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ResultContent.Valid {
		item.ResultContent = &r.ResultContent.String
	}
	if r.ResultFileUrl.Valid {
		item.ResultFileURL = &r.ResultFileUrl.String
	}
	if r.ErrorMessage.Valid {
		item.ErrorMessage = &r.ErrorMessage.String
	}
	if r.CompletedAt.Valid {
		item.CompletedAt = &r.CompletedAt.Time
	}
	return item
}

// stripContent hides the result of a private item from callers without access.
func (i Item) stripContent() Item {
	i.ResultContent = nil
	i.ResultFileURL = nil
	return i
}
