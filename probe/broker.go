package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"casehub/core"

	"github.com/redis/go-redis/v9"
)

// BrokerTarget describes the messaging broker
type BrokerTarget struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// Addr returns host:port
func (t BrokerTarget) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Broker probes the messaging service with a PING on a fresh connection
type Broker struct {
	target BrokerTarget
	opts   Options
}

// NewBroker creates the probe
func NewBroker(target BrokerTarget, opts Options) *Broker {
	return &Broker{target: target, opts: opts.withDefaults()}
}

// CheckStatus implements monitor.MonitoredService
func (b *Broker) CheckStatus(ctx context.Context) core.ServiceStatusReport {
	return check(ctx, core.ServiceMessaging, b.opts, b.ping)
}

func (b *Broker) ping(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:            b.target.Addr(),
		Username:        b.target.Username,
		Password:        b.target.Password,
		DB:              b.target.DB,
		PoolSize:        1,
		MaxRetries:      -1,
		DisableIdentity: true,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to message broker at %s: %w", b.target.Addr(), err)
	}
	return nil
}
