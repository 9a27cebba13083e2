// Package notification keeps short-lived operator notices (save succeeded,
// save failed) in memory and serves the ones that have not yet expired.
package notification

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Notice Types
// ---------------------------------------------------------------------------

// Level is the severity shown with a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a single transient message.
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrNoticeNotFound is returned by Dismiss for unknown or expired ids.
var ErrNoticeNotFound = errors.New("notice not found")

// ---------------------------------------------------------------------------
// Board
// ---------------------------------------------------------------------------

// Board stores notices until they expire. Expired notices are hidden from
// Active immediately and dropped from memory by Sweep.
type Board struct {
	mu      sync.RWMutex
	now     func() time.Time
	notices map[string]*Notice
}

// NewBoard creates an empty Board.
func NewBoard() *Board {
	return &Board{
		now:     time.Now,
		notices: make(map[string]*Notice),
	}
}

// Post adds a notice that lives for ttl.
func (b *Board) Post(level Level, message string, ttl time.Duration) Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := &Notice{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	b.notices[n.ID] = n
	return *n
}

// Active returns unexpired notices, oldest first.
func (b *Board) Active() []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.now()
	out := make([]Notice, 0, len(b.notices))
	for _, n := range b.notices {
		if now.Before(n.ExpiresAt) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Dismiss removes a notice before it expires.
func (b *Board) Dismiss(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.notices[id]
	if !ok || !b.now().Before(n.ExpiresAt) {
		return ErrNoticeNotFound
	}
	delete(b.notices, id)
	return nil
}

// Sweep drops expired notices and returns how many were removed.
func (b *Board) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for id, n := range b.notices {
		if !now.Before(n.ExpiresAt) {
			delete(b.notices, id)
			removed++
		}
	}
	return removed
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the board over HTTP via Echo.
type Handler struct {
	board *Board
}

// NewHandler creates a new Handler.
func NewHandler(board *Board) *Handler {
	return &Handler{board: board}
}

// RegisterRoutes registers the notice routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notices", h.HandleList)
	g.DELETE("/notices/:id", h.HandleDismiss)
}

// HandleList handles GET /notices.
func (h *Handler) HandleList(c echo.Context) error {
	return c.JSON(http.StatusOK, h.board.Active())
}

// HandleDismiss handles DELETE /notices/:id.
func (h *Handler) HandleDismiss(c echo.Context) error {
	if err := h.board.Dismiss(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
