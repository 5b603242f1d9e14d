package bootstrap

import (
	"casehub/config"
	"casehub/core"
	"casehub/messenger"
	"casehub/monitor"
	"casehub/probe"
	"casehub/retry"

	"go.uber.org/zap"
)

// DatabaseTarget maps the database section onto a probe target
func DatabaseTarget(cfg *config.Config) probe.DatabaseTarget {
	db := cfg.Database
	return probe.DatabaseTarget{
		Kind:     db.Type,
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Name:     db.Name,
		SSLMode:  db.SSLMode,
		Path:     db.Path,
		URI:      db.URI,
	}
}

func IndexServerTarget(cfg *config.Config) probe.IndexServerTarget {
	return probe.IndexServerTarget{
		Scheme: cfg.IndexServer.Scheme,
		Host:   cfg.IndexServer.Host,
		Port:   cfg.IndexServer.Port,
		Path:   cfg.IndexServer.Path,
	}
}

func BrokerTarget(cfg *config.Config) probe.BrokerTarget {
	return probe.BrokerTarget{
		Host:     cfg.Messaging.Host,
		Port:     cfg.Messaging.Port,
		Username: cfg.Messaging.Username,
		Password: cfg.Messaging.Password,
		DB:       cfg.Messaging.DB,
	}
}

func CoordinationTarget(cfg *config.Config) probe.CoordinationTarget {
	return probe.CoordinationTarget{
		Endpoints:   cfg.Coordination.Endpoints,
		Username:    cfg.Coordination.Username,
		Password:    cfg.Coordination.Password,
		DialTimeout: cfg.Coordination.DialTimeout,
	}
}

// ConnectionInfo returns the broker parameters used by event channels
func ConnectionInfo(cfg *config.Config) messenger.ConnectionInfo {
	return messenger.ConnectionInfo{
		Host:     cfg.Messaging.Host,
		Port:     cfg.Messaging.Port,
		Username: cfg.Messaging.Username,
		Password: cfg.Messaging.Password,
		DB:       cfg.Messaging.DB,
	}
}

// InitProbes builds one probe per multi-user service
func InitProbes(cfg *config.Config, executor *retry.Executor, sugar *zap.SugaredLogger) (map[core.ServiceID]monitor.MonitoredService, error) {
	opts := probe.Options{
		Executor: executor,
		Attempts: cfg.ProbePolicy(),
		Logger:   sugar,
	}

	database, err := probe.NewDatabase(DatabaseTarget(cfg), opts)
	if err != nil {
		return nil, err
	}

	return map[core.ServiceID]monitor.MonitoredService{
		core.ServiceCaseDatabase:  database,
		core.ServiceKeywordSearch: probe.NewIndexServer(IndexServerTarget(cfg), nil, opts),
		core.ServiceMessaging:     probe.NewBroker(BrokerTarget(cfg), opts),
		core.ServiceCoordination:  probe.NewCoordination(CoordinationTarget(cfg), opts),
	}, nil
}
