package notify

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"dcaengine/src/model"
)

// Notifier receives one event per order state transition. Implementations
// must never fail the emitting operation: delivery problems are logged and
// swallowed.
type Notifier interface {
	Publish(ctx context.Context, event *model.OrderEvent)
}

type eventStore interface {
	Create(ctx context.Context, event *model.OrderEvent) error
}

// Fanout forwards each event to every registered notifier.
type Fanout []Notifier

func (f Fanout) Publish(ctx context.Context, event *model.OrderEvent) {
	for _, n := range f {
		n.Publish(ctx, event)
	}
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	entry *logger.Entry
}

func NewLogNotifier(entry *logger.Entry) *LogNotifier {
	if entry == nil {
		entry = logger.NewEntry(logger.StandardLogger())
	}
	return &LogNotifier{entry: entry}
}

func (n *LogNotifier) Publish(_ context.Context, event *model.OrderEvent) {
	entry := n.entry.WithFields(logger.Fields{
		"order_id":   event.OrderID,
		"type":       event.Type,
		"amount_in":  event.AmountIn,
		"amount_out": event.AmountOut,
		"fee":        event.Fee,
		"refund":     event.Refund,
	})

	if event.Type == model.EventExecutionFailed {
		entry.WithField("reason", event.Reason).Warn("order event")
		return
	}

	entry.Info("order event")
}

// DBNotifier persists events through the event repository.
type DBNotifier struct {
	events eventStore
}

func NewDBNotifier(events eventStore) *DBNotifier {
	return &DBNotifier{events: events}
}

func (n *DBNotifier) Publish(ctx context.Context, event *model.OrderEvent) {
	if err := n.events.Create(ctx, event); err != nil {
		logger.WithError(err).WithFields(logger.Fields{
			"order_id": event.OrderID,
			"type":     event.Type,
		}).Error("failed to persist order event")
	}
}
