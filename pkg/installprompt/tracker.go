package installprompt

import (
	"time"

	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/rs/zerolog"
)

// Prompt is a captured install affordance that can be triggered later by
// a user action.
type Prompt struct {
	// Platforms lists the platforms the prompt installs for
	Platforms []string

	// CapturedAt is when the platform signalled installability
	CapturedAt time.Time
}

// Tracker keeps the pending prompt between the installability signal and
// the user accepting it.
type Tracker struct {
	pending Slot[Prompt]
	logger  zerolog.Logger
}

// NewTracker creates a tracker with no pending prompt.
func NewTracker() *Tracker {
	return &Tracker{
		logger: logging.NewLogger(logging.ComponentInstall),
	}
}

// BeforeInstallPrompt records that the app became installable. A prompt
// already pending is kept and false is returned.
func (t *Tracker) BeforeInstallPrompt(p Prompt) bool {
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now()
	}
	if !t.pending.Set(p) {
		t.logger.Debug().Msg("Install prompt already pending")
		return false
	}
	t.logger.Info().Strs("platforms", p.Platforms).Msg("Install prompt captured")
	return true
}

// Prompt hands out the pending prompt for the user to accept. It can be
// taken only once.
func (t *Tracker) Prompt() (Prompt, bool) {
	return t.pending.Take()
}

// Pending reports whether an install prompt is waiting.
func (t *Tracker) Pending() bool {
	_, ok := t.pending.Peek()
	return ok
}

// AppInstalled drops the pending prompt once the app is installed.
func (t *Tracker) AppInstalled() {
	t.pending.Clear()
	t.logger.Info().Msg("App installed")
}
