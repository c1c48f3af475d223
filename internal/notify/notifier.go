// Package notify fans execution outcomes out to chat channels. Delivery is
// best effort; a failing sender never affects the trading path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Event types an operator can subscribe to.
const (
	EventExecutionConfirmed = "execution_confirmed"
	EventExecutionFailed    = "execution_failed"
	EventExecutionDryRun    = "execution_dry_run"
	EventSubscriptionLost   = "subscription_lost"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every Sender, filtered by event type. An empty
// event list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends title/message for event to all senders if event is allowed.
// Sender failures are logged and combined into the returned error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if n == nil || len(n.senders) == 0 {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// NotifyExecution reports a settlement attempt under the matching event.
func (n *Notifier) NotifyExecution(ctx context.Context, exec domain.Execution) error {
	event := EventExecutionConfirmed
	switch exec.Status {
	case domain.ExecutionFailed:
		event = EventExecutionFailed
	case domain.ExecutionDryRun:
		event = EventExecutionDryRun
	}

	title := fmt.Sprintf("Arbitrage %s: buy %s, sell %s", exec.Status, exec.BuyVenue, exec.SellVenue)
	var b strings.Builder
	fmt.Fprintf(&b, "input: %s\n", exec.InputAmount)
	if exec.TxHash != "" {
		fmt.Fprintf(&b, "tx: %s\n", exec.TxHash)
	}
	fmt.Fprintf(&b, "token0 gained: %s\n", exec.Token0Gained())
	fmt.Fprintf(&b, "native spent: %s", exec.NativeSpent())
	if exec.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", exec.Error)
	}
	return n.Notify(ctx, event, title, b.String())
}
