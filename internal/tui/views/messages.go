package views

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Lllllllleong/caresync/internal/board"
)

const (
	taskTimeout   = 30 * time.Second
	uploadTimeout = 3 * time.Minute
)

// StateChanged carries a fresh copy of the board state.
type StateChanged struct {
	State board.State
}

// OpDone reports the end of a board operation started by a view. The error,
// if any, is already recorded in the board's LastError.
type OpDone struct {
	Err error
}

// AskDone reports the end of a streamed reply.
type AskDone struct {
	Err error
}

// FocusChat and FocusBoard move keyboard focus between the panels.
type FocusChat struct{}
type FocusBoard struct{}

func runOp(timeout time.Duration, op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return OpDone{Err: op(ctx)}
	}
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
