package messenger

import (
	"context"
	"errors"
	"sync"

	"casehub/core"
	"casehub/eventbus"

	"go.uber.org/zap"
)

// ErrNoRemoteChannel is returned by PublishRemotely when no case channel is open
var ErrNoRemoteChannel = errors.New("no remote event channel open")

// Publisher publishes case events locally and, while a multi-user case is
// open, to the other instances through that case's channel
type Publisher struct {
	bus    *eventbus.Bus
	info   ConnectionInfo
	opts   []Option
	logger *zap.SugaredLogger

	mu      sync.Mutex
	channel *Channel
}

// NewPublisher creates a publisher delivering into bus. opts are applied to
// every channel it opens.
func NewPublisher(bus *eventbus.Bus, info ConnectionInfo, logger *zap.SugaredLogger, opts ...Option) *Publisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Publisher{
		bus:    bus,
		info:   info,
		opts:   append([]Option{WithLogger(logger)}, opts...),
		logger: logger,
	}
}

// OpenRemoteEventChannel opens the channel for a case, closing any channel
// that was already open
func (p *Publisher) OpenRemoteEventChannel(ctx context.Context, channelName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Stop()
		p.channel = nil
	}

	ch, err := Open(ctx, channelName, p.bus, p.info, p.opts...)
	if err != nil {
		return err
	}
	p.channel = ch
	return nil
}

// CloseRemoteEventChannel stops the open channel, if any
func (p *Publisher) CloseRemoteEventChannel() {
	p.mu.Lock()
	ch := p.channel
	p.channel = nil
	p.mu.Unlock()

	if ch != nil {
		ch.Stop()
	}
}

// RemoteChannel returns the open channel, or nil
func (p *Publisher) RemoteChannel() *Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// Subscribe registers fn on the local bus
func (p *Publisher) Subscribe(fn eventbus.Subscriber, eventTypes ...string) eventbus.SubscriptionID {
	return p.bus.Subscribe(fn, eventTypes...)
}

// Unsubscribe removes a subscription from the local bus
func (p *Publisher) Unsubscribe(id eventbus.SubscriptionID) bool {
	return p.bus.Unsubscribe(id)
}

// Publish delivers event to local subscribers and then sends it to other
// instances if a channel is open. Local delivery happens even when the
// remote send fails.
func (p *Publisher) Publish(ctx context.Context, event core.Event) error {
	p.PublishLocally(event)

	err := p.PublishRemotely(ctx, event)
	if errors.Is(err, ErrNoRemoteChannel) {
		return nil
	}
	return err
}

// PublishLocally delivers event to local subscribers only
func (p *Publisher) PublishLocally(event core.Event) {
	p.bus.Publish(event)
}

// PublishRemotely sends event to other instances only
func (p *Publisher) PublishRemotely(ctx context.Context, event core.Event) error {
	ch := p.RemoteChannel()
	if ch == nil {
		return ErrNoRemoteChannel
	}
	if err := ch.Send(ctx, event); err != nil {
		p.logger.Errorw("Failed to publish event remotely",
			"type", event.EventType(),
			"topic", ch.Topic(),
			"error", err)
		return err
	}
	return nil
}
