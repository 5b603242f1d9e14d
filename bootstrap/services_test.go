package bootstrap

import (
	"testing"
	"time"

	"casehub/config"
	"casehub/core"
	"casehub/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTargets(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Type = "postgres"
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 5433
	cfg.Database.User = "cases"
	cfg.Database.Password = "pw"
	cfg.IndexServer.Scheme = "https"
	cfg.IndexServer.Host = "solr.internal"
	cfg.IndexServer.Port = 8984
	cfg.IndexServer.Path = "/solr"
	cfg.Messaging.Host = "broker.internal"
	cfg.Messaging.Port = 6380
	cfg.Messaging.DB = 2
	cfg.Coordination.Endpoints = []string{"etcd:2379"}
	cfg.Coordination.DialTimeout = 3 * time.Second

	db := DatabaseTarget(cfg)
	assert.Equal(t, "postgres", db.Kind)
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, 5433, db.Port)
	assert.Equal(t, "pw", db.Password)

	assert.Equal(t, "https://solr.internal:8984/solr/admin/info/system?wt=json", IndexServerTarget(cfg).StatusURL())
	assert.Equal(t, "broker.internal:6380", BrokerTarget(cfg).Addr())

	info := ConnectionInfo(cfg)
	assert.Equal(t, "broker.internal:6380", info.Addr())
	assert.Equal(t, 2, info.DB)

	coord := CoordinationTarget(cfg)
	assert.Equal(t, []string{"etcd:2379"}, coord.Endpoints)
	assert.Equal(t, 3*time.Second, coord.DialTimeout)
}

func TestInitProbes(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = t.TempDir() + "/cases.db"
	cfg.Monitor.ProbeAttempts = 1
	cfg.Monitor.ProbeTimeout = time.Second

	probes, err := InitProbes(cfg, retry.NewExecutor(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	for _, id := range core.AllServices() {
		assert.Contains(t, probes, id)
	}

	cfg.Database.Type = "oracle"
	_, err = InitProbes(cfg, retry.NewExecutor(), zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}
