// Package messenger distributes case events between collaborating instances.
//
// A Channel is one publish/subscribe connection to the messaging broker for
// one open case. Events sent on a channel reach every other instance that has
// the same case open; events from other instances are delivered into the local
// event sink. There is no automatic reconnection: a channel that loses its
// connection moves to Disconnected and must be reopened by its owner.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"casehub/core"
	"casehub/metrics"
	"casehub/retry"
	"casehub/util/goroutine"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrChannelClosed is returned by Send after Stop or a lost connection
	ErrChannelClosed = errors.New("event channel is closed")
	// ErrConnectionFailed is returned by Open when the broker cannot be reached
	ErrConnectionFailed = errors.New("failed to connect to message broker")
	// ErrInvalidConnectionInfo is returned for incomplete connection parameters
	ErrInvalidConnectionInfo = errors.New("invalid message broker connection info")
)

const (
	// DefaultInboxSize is the number of received events buffered for delivery
	DefaultInboxSize = 256
	// DefaultDedupCacheSize is how many recently accepted event ids are
	// remembered to drop redelivered copies
	DefaultDedupCacheSize = 1024
)

// EventSink receives events that arrived from other instances
type EventSink interface {
	Publish(event core.Event)
}

// ConnectionInfo holds the broker connection parameters
type ConnectionInfo struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// Validate checks that the broker address is usable
func (c ConnectionInfo) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConnectionInfo)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConnectionInfo, c.Port)
	}
	if c.DB < 0 {
		return fmt.Errorf("%w: db must be >= 0", ErrInvalidConnectionInfo)
	}
	return nil
}

// Addr returns host:port
func (c ConnectionInfo) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// State is the connection state of a channel
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Option configures a Channel
type Option func(*Channel)

// WithLogger sets the channel logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Channel) { c.logger = logger }
}

// WithExecutor sets the retry executor used for sends
func WithExecutor(executor *retry.Executor) Option {
	return func(c *Channel) { c.executor = executor }
}

// WithSendAttempts sets the retry policy of a single send
func WithSendAttempts(attempts []retry.TaskAttempt) Option {
	return func(c *Channel) { c.sendAttempts = attempts }
}

// WithRegistry sets the recognised event types
func WithRegistry(registry *Registry) Option {
	return func(c *Channel) { c.registry = registry }
}

// WithSelector overrides DefaultSelector
func WithSelector(selector string) Option {
	return func(c *Channel) { c.selector = selector }
}

// WithInboxSize sets how many received events may wait for delivery
func WithInboxSize(n int) Option {
	return func(c *Channel) { c.inboxSize = n }
}

// WithDedupCacheSize sets how many accepted event ids are remembered.
// n <= 0 keeps DefaultDedupCacheSize.
func WithDedupCacheSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.dedupSize = n
		}
	}
}

// Channel is an open event channel for one case topic
type Channel struct {
	topic     string
	selector  string
	sender    string
	sink      EventSink
	registry  *Registry
	executor  *retry.Executor
	logger    *zap.SugaredLogger
	inboxSize int
	dedupSize int

	// seen holds ids of accepted events. A send retried after its attempt
	// timed out may reach the broker twice.
	seen *lru.Cache[string, bool]

	sendAttempts []retry.TaskAttempt

	client *redis.Client
	pubsub *redis.PubSub

	state   atomic.Int32
	stopped atomic.Bool
	sendMu  sync.Mutex

	stopOnce    sync.Once
	releaseOnce sync.Once
	stopping    chan struct{}
	inbox       chan core.Event
	receiveDone chan struct{}
}

// Open connects to the broker, subscribes to topic and starts delivering
// remote events to sink. On failure every resource created so far is
// released and an error wrapping ErrConnectionFailed is returned.
func Open(ctx context.Context, topic string, sink EventSink, info ConnectionInfo, opts ...Option) (*Channel, error) {
	if topic == "" {
		return nil, errors.New("event channel topic is required")
	}
	if sink == nil {
		return nil, errors.New("event channel sink is required")
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	c := &Channel{
		topic:        topic,
		selector:     DefaultSelector,
		sender:       uuid.NewString(),
		sink:         sink,
		sendAttempts: []retry.TaskAttempt{{}},
		inboxSize:    DefaultInboxSize,
		dedupSize:    DefaultDedupCacheSize,
		stopping:     make(chan struct{}),
		receiveDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	if c.executor == nil {
		c.executor = retry.NewExecutor()
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if err := retry.ValidatePolicy(c.sendAttempts); err != nil {
		return nil, fmt.Errorf("invalid send policy: %w", err)
	}
	seen, err := lru.New[string, bool](c.dedupSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}
	c.seen = seen
	c.logger = c.logger.With("topic", topic)
	c.inbox = make(chan core.Event, c.inboxSize)
	c.setState(StateConnecting)

	c.client = redis.NewClient(&redis.Options{
		Addr:            info.Addr(),
		Username:        info.Username,
		Password:        info.Password,
		DB:              info.DB,
		PoolSize:        2,
		DisableIdentity: true,
	})
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.abortOpen()
		return nil, fmt.Errorf("%w at %s: %w", ErrConnectionFailed, info.Addr(), err)
	}

	c.pubsub = c.client.Subscribe(ctx, c.channelName())
	if _, err := c.pubsub.Receive(ctx); err != nil {
		c.abortOpen()
		return nil, fmt.Errorf("%w: subscribe to %s: %w", ErrConnectionFailed, c.channelName(), err)
	}

	c.setState(StateConnected)
	goroutine.Go("event-channel-receiver", c.logger, nil, c.receive)
	goroutine.Go("event-channel-dispatcher", c.logger, nil, c.dispatch)

	c.logger.Infow("Event channel opened",
		"broker", info.Addr(),
		"channel", c.channelName(),
		"sender", c.sender)
	return c, nil
}

// abortOpen releases a half-built channel
func (c *Channel) abortOpen() {
	c.stopped.Store(true)
	if err := c.release(); err != nil {
		c.logger.Warnw("Failed to release event channel resources", "error", err)
	}
}

// channelName is the broker channel, scoped by selector so the broker itself
// filters out traffic from other applications
func (c *Channel) channelName() string {
	return c.selector + "." + c.topic
}

// Topic returns the case topic of the channel
func (c *Channel) Topic() string {
	return c.topic
}

// SenderID returns the id this channel stamps on outgoing messages
func (c *Channel) SenderID() string {
	return c.sender
}

// State returns the current connection state
func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) setState(s State) {
	c.state.Store(int32(s))
	connected := 0.0
	if s == StateConnected {
		connected = 1
	}
	metrics.ChannelState.WithLabelValues(c.topic).Set(connected)
}

// Send publishes event to every other instance on the topic.
// Sends are serialized per channel so messages from one channel arrive in
// the order they were sent. A failed send leaves the channel usable.
func (c *Channel) Send(ctx context.Context, event core.Event) error {
	if event == nil {
		return errors.New("cannot send nil event")
	}
	if c.stopped.Load() || c.State() != StateConnected {
		return ErrChannelClosed
	}

	data, err := encodeEvent(c.selector, c.sender, event)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	err = c.executor.Do(ctx, func(ctx context.Context) error {
		return c.client.Publish(ctx, c.channelName(), data).Err()
	}, c.sendAttempts, retry.TerminatorFunc(c.stopped.Load), c.logger)
	if err != nil {
		metrics.EventSendFailures.Inc()
		if errors.Is(err, retry.ErrAttemptsStopped) {
			return ErrChannelClosed
		}
		return fmt.Errorf("failed to send %s event: %w", event.EventType(), err)
	}

	metrics.EventsPublished.WithLabelValues(event.EventType()).Inc()
	return nil
}

// receive reads messages until the subscription ends. It never calls the
// sink; decoded events are queued for the dispatcher. A full inbox blocks
// the reader, so a slow sink delays delivery but loses nothing.
func (c *Channel) receive() {
	defer close(c.receiveDone)
	defer close(c.inbox)

	ctx := context.Background()
	for {
		msg, err := c.pubsub.ReceiveMessage(ctx)
		if err != nil {
			if !c.stopped.Load() {
				c.connectionLost(err)
			}
			return
		}

		event := c.accept([]byte(msg.Payload))
		if event == nil {
			continue
		}

		select {
		case c.inbox <- event:
		case <-c.stopping:
			metrics.EventsDropped.WithLabelValues(metrics.DropReasonStopped).Inc()
			return
		}
	}
}

// accept decodes and filters one message, returning nil when it is dropped
func (c *Channel) accept(data []byte) core.Event {
	if c.stopped.Load() {
		metrics.EventsDropped.WithLabelValues(metrics.DropReasonStopped).Inc()
		return nil
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		c.logger.Warnw("Dropping undecodable message", "error", err)
		metrics.EventsDropped.WithLabelValues(metrics.DropReasonDecode).Inc()
		return nil
	}
	if env.Selector != c.selector {
		c.logger.Debugw("Dropping message with foreign selector", "selector", env.Selector)
		metrics.EventsDropped.WithLabelValues(metrics.DropReasonSelector).Inc()
		return nil
	}
	if env.Sender == c.sender {
		metrics.EventsDropped.WithLabelValues(metrics.DropReasonOwnMessage).Inc()
		return nil
	}

	event, err := decodeEvent(c.registry, env)
	if err != nil {
		if errors.Is(err, ErrUnknownEventType) {
			c.logger.Debugw("Dropping unrecognized event", "type", env.Type)
			metrics.EventsDropped.WithLabelValues(metrics.DropReasonUnknownType).Inc()
		} else {
			c.logger.Warnw("Dropping undecodable event", "type", env.Type, "error", err)
			metrics.EventsDropped.WithLabelValues(metrics.DropReasonDecode).Inc()
		}
		return nil
	}

	if id := event.Metadata().ID; id != "" {
		if found, _ := c.seen.ContainsOrAdd(id, true); found {
			c.logger.Debugw("Dropping duplicate event", "type", env.Type, "id", id)
			metrics.EventsDropped.WithLabelValues(metrics.DropReasonDuplicate).Inc()
			return nil
		}
	}

	event.Metadata().MarkRemote()
	metrics.EventsReceived.WithLabelValues(event.EventType()).Inc()
	return event
}

// dispatch hands queued events to the sink in arrival order
func (c *Channel) dispatch() {
	for event := range c.inbox {
		if c.stopped.Load() {
			metrics.EventsDropped.WithLabelValues(metrics.DropReasonStopped).Inc()
			continue
		}
		goroutine.SafeCall("event-channel-sink", c.logger, func() {
			c.sink.Publish(event)
		})
	}
}

func (c *Channel) connectionLost(err error) {
	c.logger.Errorw("Event channel connection lost", "error", err)
	c.stopped.Store(true)
	if releaseErr := c.release(); releaseErr != nil {
		c.logger.Warnw("Failed to release event channel resources", "error", releaseErr)
	}
}

// release closes the subscription and then the connection, each
// independently. Only the first call does any work.
func (c *Channel) release() error {
	var err error
	c.releaseOnce.Do(func() {
		var errs []error
		if c.pubsub != nil {
			if closeErr := c.pubsub.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("close subscription: %w", closeErr))
			}
		}
		if c.client != nil {
			if closeErr := c.client.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("close connection: %w", closeErr))
			}
		}
		c.setState(StateDisconnected)
		err = errors.Join(errs...)
	})
	return err
}

// Stop closes the channel. Sends fail with ErrChannelClosed afterwards and
// messages still arriving are discarded. Stop may be called any number of
// times and from a sink callback.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stopping)
		if err := c.release(); err != nil {
			c.logger.Warnw("Error closing event channel", "error", err)
		}
		<-c.receiveDone
		c.logger.Infow("Event channel stopped")
	})
}
