package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casehub/core"
	"casehub/messenger"
	"casehub/monitor"

	"github.com/google/uuid"
)

// ErrLoopbackTimeout is returned when the self test event never arrives
var ErrLoopbackTimeout = errors.New("test event was not delivered")

// selfTestOrder is the order services are verified in
var selfTestOrder = []core.ServiceID{
	core.ServiceCaseDatabase,
	core.ServiceKeywordSearch,
	core.ServiceMessaging,
	core.ServiceCoordination,
}

// SelfTestStep reports one stage of the self test
type SelfTestStep func(report core.ServiceStatusReport)

// SelfTest verifies that multi-user cases can work from this instance.
// Services are checked one by one and the first DOWN one is returned as a
// *monitor.ServiceDownError. When all are UP, two event channels are opened
// on a throwaway topic and a test event must travel from one to the other
// within timeout. step, if not nil, sees every service report.
func (a *App) SelfTest(ctx context.Context, timeout time.Duration, step SelfTestStep) error {
	for _, id := range selfTestOrder {
		report, err := a.Monitor.CheckService(ctx, id)
		if err != nil {
			return err
		}
		if step != nil {
			step(report)
		}
		if !report.IsUp() {
			return &monitor.ServiceDownError{Report: report}
		}
	}
	return a.loopback(ctx, timeout)
}

type loopbackSink chan core.Event

func (s loopbackSink) Publish(event core.Event) {
	select {
	case s <- event:
	default:
	}
}

func (a *App) loopback(ctx context.Context, timeout time.Duration) error {
	topic := "selftest-" + uuid.NewString()
	info := ConnectionInfo(a.Config)

	sender, err := messenger.Open(ctx, topic, loopbackSink(make(chan core.Event, 1)), info, a.channelOpts...)
	if err != nil {
		return fmt.Errorf("failed to open sending channel: %w", err)
	}
	defer sender.Stop()

	received := make(loopbackSink, 4)
	receiver, err := messenger.Open(ctx, topic, received, info, a.channelOpts...)
	if err != nil {
		return fmt.Errorf("failed to open receiving channel: %w", err)
	}
	defer receiver.Stop()

	event := &core.CaseDetailsChanged{
		EventHeader: core.NewEventHeader(a.Config.Instance.Name),
		Field:       "self_test",
		NewValue:    topic,
	}
	if err := sender.Send(ctx, event); err != nil {
		return fmt.Errorf("failed to send test event: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case got := <-received:
			if got.Metadata().ID == event.ID {
				a.Sugar.Infow("Self test event round-tripped", "topic", topic)
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%w within %v", ErrLoopbackTimeout, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
