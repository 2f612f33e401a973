package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Bus keeps the views of one client session in step. Publish fans a
// confirmed message out to handlers in the same view and writes it to the
// shared Channel for sibling views. The Channel is optional.
type Bus struct {
	channel    Channel
	dispatcher *Dispatcher
	logger     *slog.Logger
	origin     string
}

// NewBus creates a bus over channel, which may be nil for a single view
func NewBus(channel Channel, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		channel:    channel,
		dispatcher: NewDispatcher(),
		logger:     logger,
		origin:     uuid.NewString(),
	}
}

// Origin identifies this bus on the shared channel
func (b *Bus) Origin() string {
	return b.origin
}

// Start begins receiving sibling views' messages until ctx is cancelled
func (b *Bus) Start(ctx context.Context) error {
	if b.channel == nil {
		return nil
	}
	if err := b.channel.Watch(ctx, b.receive); err != nil {
		return fmt.Errorf("failed to watch broadcast channel: %w", err)
	}
	return nil
}

// Publish validates msg, dispatches it in this view, then writes it to the channel
func (b *Bus) Publish(msg EngagementChanged) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	b.dispatcher.Dispatch(msg)

	if b.channel == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to encode broadcast: %w", err)
	}
	if err := b.channel.Write(payload); err != nil {
		return fmt.Errorf("failed to write broadcast: %w", err)
	}
	return nil
}

// Subscribe registers handler for messages about kind from actorID.
// Messages from any other actor never reach the handler.
func (b *Bus) Subscribe(actorID string, kind Kind, handler Handler) func() {
	return b.dispatcher.Subscribe(func(msg EngagementChanged) {
		if msg.ActorID != actorID || msg.Kind != kind {
			return
		}
		handler(msg)
	})
}

func (b *Bus) receive(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Debug("dropping malformed broadcast", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if err := env.Message.Validate(); err != nil {
		b.logger.Debug("dropping invalid broadcast", "error", err)
		return
	}
	b.dispatcher.Dispatch(env.Message)
}
