package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"casehub/api"
	"casehub/config"
	"casehub/core"
	"casehub/eventbus"
	"casehub/messenger"
	"casehub/monitor"
	"casehub/retry"

	"go.uber.org/zap"
)

var (
	// ErrServicesDown is returned by OpenCase when a multi-user service is not UP
	ErrServicesDown = errors.New("multi-user services are not available")
	// ErrInvalidCaseName is returned by OpenCase for a blank case name
	ErrInvalidCaseName = errors.New("case name is required")
)

// caseChannelSuffix is appended to the case name to form its event channel
const caseChannelSuffix = "-events"

// App is a casehub instance with all its components
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Executor    *retry.Executor
	Monitor     *monitor.Monitor
	Bus         *eventbus.Bus
	Publisher   *messenger.Publisher
	Diagnostics *api.Server

	channelOpts []messenger.Option

	mu           sync.Mutex
	caseName     string
	caseListener monitor.ListenerID
	started      bool
	shutdownOnce sync.Once
}

// Option customizes New
type Option func(*appOptions)

type appOptions struct {
	services map[core.ServiceID]monitor.MonitoredService
}

// WithServices replaces the network probes
func WithServices(services map[core.ServiceID]monitor.MonitoredService) Option {
	return func(o *appOptions) { o.services = services }
}

// NewApp loads configuration from path and creates the application
func NewApp(configPath string) (*App, error) {
	cfg, err := InitConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, sugar, err := InitLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logConfig(cfg, sugar)

	return New(cfg, logger)
}

// New creates the application from a loaded configuration
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Sugar:    sugar,
		Executor: retry.NewExecutor(),
	}

	services := o.services
	if services == nil {
		var err error
		services, err = InitProbes(cfg, app.Executor, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize probes: %w", err)
		}
	}

	app.Monitor = monitor.New(monitor.Config{PollInterval: cfg.MonitorPollInterval()}, sugar)
	for _, id := range core.AllServices() {
		svc, ok := services[id]
		if !ok {
			continue
		}
		if err := app.Monitor.Register(id, svc); err != nil {
			return nil, err
		}
	}

	app.channelOpts = []messenger.Option{
		messenger.WithLogger(sugar),
		messenger.WithExecutor(app.Executor),
		messenger.WithSendAttempts(cfg.SendPolicy()),
		messenger.WithSelector(cfg.Messaging.Selector),
		messenger.WithInboxSize(cfg.Messenger.InboxSize),
		messenger.WithDedupCacheSize(cfg.Messenger.DedupCacheSize),
	}
	app.Bus = eventbus.New(sugar)
	app.Publisher = messenger.NewPublisher(app.Bus, ConnectionInfo(cfg), sugar, app.channelOpts...)

	if cfg.Diagnostics.Enabled {
		app.Diagnostics = api.NewServer(app.Monitor, app.Executor, api.Options{
			Addr:       cfg.Diagnostics.Addr,
			Instance:   cfg.Instance.Name,
			CheckRate:  cfg.Diagnostics.RateLimit,
			CheckBurst: cfg.Diagnostics.Burst,
		}, sugar)
	}

	return app, nil
}

// Start begins background health checking and serves diagnostics
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errors.New("application already started")
	}

	if err := a.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services monitor: %w", err)
	}

	if a.Diagnostics != nil {
		if err := a.Diagnostics.Start(); err != nil {
			a.Monitor.Stop()
			return fmt.Errorf("failed to start diagnostics server: %w", err)
		}
	}

	a.started = true
	a.Sugar.Infow("casehub started",
		"instance", a.Config.Instance.Name,
		"services", len(a.Monitor.Services()),
		"poll_interval", a.Monitor.PollInterval())
	return nil
}

// OpenCase makes name the current multi-user case. Every multi-user service
// is checked first; the case is refused with ErrServicesDown unless all of
// them are UP. An already open case is closed first.
func (a *App) OpenCase(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidCaseName
	}

	a.CloseCase()

	if err := a.Monitor.RequireUp(ctx); err != nil {
		var down *monitor.ServiceDownError
		if errors.As(err, &down) {
			a.Sugar.Errorw("Cannot open multi-user case",
				"case", name,
				"service", down.Report.Service,
				"error", down.Report.Message)
			return fmt.Errorf("%w: %w", ErrServicesDown, err)
		}
		return err
	}

	channel := name + caseChannelSuffix
	if err := a.Publisher.OpenRemoteEventChannel(ctx, channel); err != nil {
		return fmt.Errorf("failed to open event channel %s: %w", channel, err)
	}

	listener := a.Monitor.AddStatusChangeListener(a.caseServiceChanged,
		core.ServiceCaseDatabase, core.ServiceKeywordSearch)

	a.mu.Lock()
	a.caseName = name
	a.caseListener = listener
	a.mu.Unlock()

	a.Sugar.Infow("Multi-user case opened", "case", name, "channel", channel)
	return nil
}

// caseServiceChanged reports loss of a service the open case depends on
func (a *App) caseServiceChanged(change monitor.StatusChange) {
	if change.NewStatus != core.ServiceStatusDown {
		return
	}
	a.Sugar.Errorw("Service required by the open case went down",
		"case", a.CurrentCase(),
		"service", change.Service,
		"error", change.Report.Message)
}

// CloseCase closes the current case and its event channel. It is a no-op
// when no case is open.
func (a *App) CloseCase() {
	a.mu.Lock()
	name, listener := a.caseName, a.caseListener
	a.caseName = ""
	a.caseListener = 0
	a.mu.Unlock()

	if name == "" {
		return
	}

	a.Monitor.RemoveStatusChangeListener(listener)
	a.Publisher.CloseRemoteEventChannel()
	a.Sugar.Infow("Multi-user case closed", "case", name)
}

// CurrentCase returns the open case name, or "" when none is open
func (a *App) CurrentCase() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caseName
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	<-c
}

// Shutdown closes the open case and stops all components. Safe to call
// more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.Sugar.Info("Shutting down...")

		a.CloseCase()
		a.Monitor.Stop()

		if a.Diagnostics != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Diagnostics.Stop(ctx); err != nil {
				a.Sugar.Errorw("Failed to stop diagnostics server", "error", err)
			}
		}

		a.Sugar.Info("Shutdown complete")
		_ = a.Logger.Sync()
	})
}
