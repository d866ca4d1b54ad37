package ledger

import (
	"fmt"

	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/types"
)

// Mode selects how a rollback target is chosen.
type Mode int

const (
	// ModeInteractive offers the most recent versions to a Chooser.
	ModeInteractive Mode = iota

	// ModePrevious picks the second-newest version.
	ModePrevious
)

func (m Mode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModePrevious:
		return "previous"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Chooser picks one of candidates (newest first) and returns its index.
type Chooser func(candidates []storage.Version) (int, error)

// SelectTarget picks the version to roll back to from history (newest first).
// With fewer than two versions there is nothing to roll back to.
func SelectTarget(history []storage.Version, mode Mode, choose Chooser) (storage.Version, error) {
	if len(history) < 2 {
		return storage.Version{}, fmt.Errorf("%w: %d version(s) exist", types.ErrInsufficientHistory, len(history))
	}

	switch mode {
	case ModePrevious:
		return history[1], nil

	case ModeInteractive:
		if choose == nil {
			return storage.Version{}, fmt.Errorf("interactive rollback requires a chooser")
		}
		candidates := history[:min(SelectionWindow, len(history))]
		idx, err := choose(candidates)
		if err != nil {
			return storage.Version{}, fmt.Errorf("failed to choose version: %w", err)
		}
		if idx < 0 || idx >= len(candidates) {
			return storage.Version{}, fmt.Errorf("invalid choice %d (expected 0-%d)", idx, len(candidates)-1)
		}
		return candidates[idx], nil

	default:
		return storage.Version{}, fmt.Errorf("unknown rollback mode: %s", mode)
	}
}
