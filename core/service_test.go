package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServiceID(t *testing.T) {
	tests := []struct {
		input string
		want  ServiceID
	}{
		{"REMOTE_CASE_DATABASE", ServiceCaseDatabase},
		{"remote_keyword_search", ServiceKeywordSearch},
		{" Messaging ", ServiceMessaging},
		{"coordination_service", ServiceCoordination},
		{"database", ServiceCaseDatabase},
		{"solr", ServiceKeywordSearch},
		{"broker", ServiceMessaging},
		{"etcd", ServiceCoordination},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseServiceID(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseServiceID_Unknown(t *testing.T) {
	_, err := ParseServiceID("mailserver")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidServiceID))
	assert.Contains(t, err.Error(), "mailserver")
}

func TestAllServices_ReturnsCopy(t *testing.T) {
	services := AllServices()
	require.Len(t, services, 4)
	assert.Equal(t, ServiceCaseDatabase, services[0])

	services[0] = "MUTATED"
	assert.Equal(t, ServiceCaseDatabase, AllServices()[0], "callers must not be able to modify the service list")
}

func TestServiceID_DisplayName(t *testing.T) {
	assert.Equal(t, "Multi-user case database service", ServiceCaseDatabase.DisplayName())
	assert.Equal(t, "Messaging service", ServiceMessaging.DisplayName())
	assert.Equal(t, "OTHER", ServiceID("OTHER").DisplayName())
	assert.False(t, ServiceID("OTHER").IsValid())
}

func TestServiceStatusReport(t *testing.T) {
	up := NewUpReport(ServiceMessaging)
	assert.True(t, up.IsUp())
	assert.Empty(t, up.Message)
	assert.False(t, up.CheckedAt.IsZero())
	assert.Equal(t, "MESSAGING: UP", up.String())

	down := NewDownReport(ServiceCaseDatabase, errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
	assert.False(t, down.IsUp())
	assert.Equal(t, ServiceStatusDown, down.Status)
	assert.Equal(t, "dial tcp 127.0.0.1:5432: connect: connection refused", down.Message)

	unknown := NewDownReport(ServiceCaseDatabase, nil)
	assert.Equal(t, "unknown error", unknown.Message)
}

func TestServiceStatus_IsValid(t *testing.T) {
	assert.True(t, ServiceStatusUp.IsValid())
	assert.True(t, ServiceStatusDown.IsValid())
	assert.False(t, ServiceStatus("").IsValid())
}
