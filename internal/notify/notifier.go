// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord, etc.) and can be
// filtered by event type so operators receive only the alerts they care about.
//
// Delivery is advisory: Notify never blocks the caller and its outcome never
// reaches the trading loop.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event types emitted by the bot.
const (
	EventStartup  = "startup"
	EventSignal   = "signal"
	EventTrade    = "trade_executed"
	EventSettled  = "trade_settled"
	EventSummary  = "hourly_summary"
	EventHalt     = "halt"
	EventSession  = "session_summary"
	EventDegraded = "degraded"
)

// DefaultTimeout bounds a single asynchronous delivery.
const DefaultTimeout = 10 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a set
// of allowed event types; only events in the set are delivered. An empty set
// allows everything.
type Notifier struct {
	senders   []Sender
	events    map[string]bool // allowed event types
	timeout   time.Duration
	onFailure func()
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, timeout time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// OnFailure registers a callback invoked once per failed sender delivery.
func (n *Notifier) OnFailure(fn func()) { n.onFailure = fn }

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Notify delivers the notification on a background goroutine bounded by the
// configured timeout. It returns immediately. The goroutine is detached from
// ctx cancellation so a shutdown message still goes out; use Wait to flush.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) {
	if !n.Enabled() || !n.allowed(event) {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		_ = n.dispatch(sendCtx, title, message)
	}()
}

// Send delivers the notification synchronously and returns the combined error
// of all failing senders.
func (n *Notifier) Send(ctx context.Context, event, title, message string) error {
	if !n.Enabled() || !n.allowed(event) {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// Wait blocks until every in-flight Notify has finished or ctx is done.
func (n *Notifier) Wait(ctx context.Context) {
	if n == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		n.logger.Warn("notifications still in flight at shutdown")
	}
}

func (n *Notifier) allowed(event string) bool {
	if len(n.events) == 0 || n.events[event] {
		return true
	}
	n.logger.Debug("event filtered out", slog.String("event", event))
	return false
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			if n.onFailure != nil {
				n.onFailure()
			}
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
