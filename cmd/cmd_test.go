package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"casehub/bootstrap"
	"casehub/config"
	"casehub/core"
	"casehub/monitor"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

// useFakeApp points the commands at an app whose services listed in down
// report DOWN
func useFakeApp(t *testing.T, down ...core.ServiceID) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	isDown := make(map[core.ServiceID]bool)
	for _, id := range down {
		isDown[id] = true
	}

	services := make(map[core.ServiceID]monitor.MonitoredService)
	for _, id := range core.AllServices() {
		id := id
		services[id] = monitor.ServiceFunc(func(ctx context.Context) core.ServiceStatusReport {
			if isDown[id] {
				return core.NewDownReport(id, errors.New("dial tcp 127.0.0.1:1: connect: connection refused"))
			}
			return core.NewUpReport(id)
		})
	}

	previous := newCLIApp
	newCLIApp = func(string) (*bootstrap.App, error) {
		cfg := &config.Config{}
		cfg.Instance.Name = "cli-test"
		cfg.Messaging.Host = mr.Host()
		cfg.Messaging.Port = port
		cfg.Messaging.Selector = "casehub-cli-test"
		cfg.Messenger.SendAttempts = 1
		cfg.Messenger.InboxSize = 8
		return bootstrap.New(cfg, zaptest.NewLogger(t), bootstrap.WithServices(services))
	}
	t.Cleanup(func() { newCLIApp = previous })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()
	assert.Equal(t, "casehub", root.Use)

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "status", "check", "test"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("no-color"))
	assert.NotNil(t, root.PersistentFlags().Lookup("quiet"))
}

func TestStatus_Table(t *testing.T) {
	useFakeApp(t, core.ServiceCoordination)

	out, err := execute(t, "status", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "MULTI-USER SERVICES")
	assert.Contains(t, out, "REMOTE_CASE_DATABASE")
	assert.Contains(t, out, "Multi-user keyword search service")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "Remediation", "DOWN services get guidance")
}

func TestStatus_Quiet(t *testing.T) {
	useFakeApp(t, core.ServiceCoordination)

	out, err := execute(t, "status", "--quiet")
	require.NoError(t, err)
	assert.NotContains(t, out, "Remediation")
}

func TestStatus_JSON(t *testing.T) {
	useFakeApp(t, core.ServiceMessaging)

	out, err := execute(t, "status", "--json")
	require.NoError(t, err)

	var reports []core.ServiceStatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 4)
	assert.Equal(t, core.ServiceCaseDatabase, reports[0].Service)
	assert.Equal(t, core.ServiceStatusDown, reports[2].Status)
}

func TestStatus_YAML(t *testing.T) {
	useFakeApp(t)

	out, err := execute(t, "status", "--yaml")
	require.NoError(t, err)

	var reports []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 4)
	assert.Equal(t, "UP", reports[3]["status"])
}

func TestStatus_ConflictingFormats(t *testing.T) {
	useFakeApp(t)
	_, err := execute(t, "status", "--json", "--yaml")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	useFakeApp(t, core.ServiceKeywordSearch)

	out, err := execute(t, "check", "database")
	require.NoError(t, err)
	assert.Contains(t, out, "Multi-user case database service")

	out, err = execute(t, "check", "search")
	var down *monitor.ServiceDownError
	require.ErrorAs(t, err, &down)
	assert.Equal(t, core.ServiceKeywordSearch, down.Report.Service)
	assert.Contains(t, out, "connection refused")
}

func TestCheck_JSON(t *testing.T) {
	useFakeApp(t)

	out, err := execute(t, "check", "MESSAGING", "--json")
	require.NoError(t, err)

	var report core.ServiceStatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, core.ServiceMessaging, report.Service)
	assert.True(t, report.IsUp())
}

func TestCheck_UnknownService(t *testing.T) {
	useFakeApp(t)
	_, err := execute(t, "check", "printer")
	assert.ErrorIs(t, err, core.ErrInvalidServiceID)
}

func TestSelfTestCommand_Passes(t *testing.T) {
	useFakeApp(t)

	out, err := execute(t, "test", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Coordination service")
	assert.Contains(t, out, "Multi-user settings verified")
}

func TestSelfTestCommand_ServiceDown(t *testing.T) {
	useFakeApp(t, core.ServiceMessaging)

	start := time.Now()
	out, err := execute(t, "test")
	require.Error(t, err)
	assert.Less(t, time.Since(start), defaultLoopbackTimeout, "no loopback attempted")

	assert.Contains(t, out, "Multi User service is down: Messaging service")
	assert.NotContains(t, out, "Coordination service")
}
