package probe

import (
	"context"
	"strconv"
	"testing"
	"time"

	"casehub/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	etcdImage             = "quay.io/coreos/etcd:v3.5.17"
	etcdClientPort        = "2379/tcp"
	clickhouseImage       = "clickhouse/clickhouse-server:latest"
	clickhouseNativePort  = "9000/tcp"
	containerStartTimeout = 120 * time.Second
)

// startContainer runs req and returns it with the host it is reachable on
func startContainer(t *testing.T, req testcontainers.ContainerRequest) (testcontainers.Container, string) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start %s", req.Image)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	return container, host
}

func TestCoordinationIntegration_Up(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	container, host := startContainer(t, testcontainers.ContainerRequest{
		Image:        etcdImage,
		ExposedPorts: []string{etcdClientPort},
		Cmd: []string{
			"etcd",
			"--listen-client-urls", "http://0.0.0.0:2379",
			"--advertise-client-urls", "http://0.0.0.0:2379",
		},
		WaitingFor: wait.ForListeningPort(etcdClientPort).WithStartupTimeout(containerStartTimeout),
	})
	mapped, err := container.MappedPort(context.Background(), etcdClientPort)
	require.NoError(t, err)

	p := NewCoordination(CoordinationTarget{
		Endpoints:   []string{"127.0.0.1:1", host + ":" + mapped.Port()},
		DialTimeout: 5 * time.Second,
	}, testOptions(t))

	report := p.CheckStatus(context.Background())
	assert.Equal(t, core.ServiceStatusUp, report.Status, report.Message)
	assert.Equal(t, core.ServiceCoordination, report.Service)
}

func TestDatabaseIntegration_ClickHouse(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	container, host := startContainer(t, testcontainers.ContainerRequest{
		Image:        clickhouseImage,
		ExposedPorts: []string{clickhouseNativePort},
		Env: map[string]string{
			"CLICKHOUSE_DB":                        "cases",
			"CLICKHOUSE_USER":                      "default",
			"CLICKHOUSE_PASSWORD":                  "testpassword",
			"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
		},
		WaitingFor: wait.ForListeningPort(clickhouseNativePort).WithStartupTimeout(containerStartTimeout),
	})
	mapped, err := container.MappedPort(context.Background(), clickhouseNativePort)
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	db, err := NewDatabase(DatabaseTarget{
		Kind:     DatabaseClickHouse,
		Host:     host,
		Port:     port,
		User:     "default",
		Password: "testpassword",
		Name:     "cases",
	}, testOptions(t))
	require.NoError(t, err)

	report := db.CheckStatus(context.Background())
	assert.Equal(t, core.ServiceStatusUp, report.Status, report.Message)

	db, err = NewDatabase(DatabaseTarget{
		Kind:     DatabaseClickHouse,
		Host:     host,
		Port:     port,
		User:     "default",
		Password: "wrong",
		Name:     "cases",
	}, testOptions(t))
	require.NoError(t, err)

	report = db.CheckStatus(context.Background())
	assert.Equal(t, core.ServiceStatusDown, report.Status)
}
