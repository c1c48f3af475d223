package gate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Policy decides what happens to a swap observed while a cycle is running.
type Policy string

const (
	// PolicyDrop ignores observations that arrive while busy.
	PolicyDrop Policy = "drop"
	// PolicyCoalesce keeps the latest busy-time observation and runs one
	// follow-up cycle for it once the current cycle ends.
	PolicyCoalesce Policy = "coalesce"
)

// ParsePolicy parses a policy name; the empty string means PolicyDrop.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyCoalesce:
		return PolicyCoalesce, nil
	default:
		return "", fmt.Errorf("gate: unknown busy policy %q", s)
	}
}

// Mailbox is a one-slot holder for the most recent pending observation.
type Mailbox struct {
	mu      sync.Mutex
	pending *domain.SwapObservation
}

// Put stores obs, replacing any pending observation. It reports whether an
// older observation was overwritten.
func (m *Mailbox) Put(obs domain.SwapObservation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced := m.pending != nil
	m.pending = &obs
	return replaced
}

// Take removes and returns the pending observation, if any.
func (m *Mailbox) Take() (domain.SwapObservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return domain.SwapObservation{}, false
	}
	obs := *m.pending
	m.pending = nil
	return obs, true
}
