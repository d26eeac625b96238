package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

// MessageLookup loads a single campaign message under the tenant.
type MessageLookup interface {
	GetMessage(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Message, error)
}

// ChildScheduler enqueues the children of a message for a visitor.
// *campaign.Scheduler implements it.
type ChildScheduler interface {
	ScheduleChildren(ctx context.Context, tc tenant.Context, msg domain.Message, event domain.TriggerEvent, visitorID uuid.UUID) (int, error)
}

// Dispatcher reacts to inbound channel status events.
type Dispatcher struct {
	correlator *Correlator
	messages   MessageLookup
	scheduler  ChildScheduler
}

func NewDispatcher(correlator *Correlator, messages MessageLookup, scheduler ChildScheduler) *Dispatcher {
	return &Dispatcher{correlator: correlator, messages: messages, scheduler: scheduler}
}

// Dispatch advances the campaign tree for one event and returns the number
// of sends scheduled. Events that cannot be correlated are discarded
// without error.
func (d *Dispatcher) Dispatch(ctx context.Context, tc tenant.Context, ev domain.ChannelEvent) (int, error) {
	event, ok := ev.EventType.TriggerEvent()
	if !ok {
		logger.Debug("ignoring channel event", "event_type", string(ev.EventType))
		return 0, nil
	}

	corr, found, err := d.correlator.Resolve(ctx, tc, ev.WhatsAppMessageID)
	if err != nil {
		return 0, err
	}
	if !found {
		logger.Debug("uncorrelated channel event",
			"event_type", string(ev.EventType), "whatsapp_message_id", ev.WhatsAppMessageID)
		return 0, nil
	}

	msg, err := d.messages.GetMessage(ctx, tc, corr.MessageID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("correlated message no longer exists", "message_id", corr.MessageID.String())
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load message %s: %w", corr.MessageID, err)
	}

	// Only a node that was itself sent on this event type advances.
	if msg.Trigger != event {
		logger.Debug("event does not match message trigger",
			"message_id", msg.ID.String(), "trigger", msg.Trigger.String(), "event", event.String())
		return 0, nil
	}

	n, err := d.scheduler.ScheduleChildren(ctx, tc, msg, event, corr.VisitorID)
	if err != nil {
		return n, err
	}
	if n > 0 {
		logger.Info("scheduled follow-up",
			"message_id", msg.ID.String(), "visitor_id", corr.VisitorID.String(), "event", event.String(), "sends", n)
	}
	return n, nil
}

// Handle runs a channel_event job.
func (d *Dispatcher) Handle(ctx context.Context, tc tenant.Context, job jobs.Job) error {
	var p jobs.ChannelEvent
	if err := job.Decode(&p); err != nil {
		return err
	}
	_, err := d.Dispatch(ctx, tc, p.Event)
	return err
}
