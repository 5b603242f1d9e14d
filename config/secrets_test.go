package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

type brokenSecrets struct{}

func (brokenSecrets) GetSecret(string) (string, error) {
	return "", errors.New("permission denied")
}

func TestEnvSecretManager_GetSecret(t *testing.T) {
	manager := &EnvSecretManager{}
	t.Setenv("CASEHUB_DATABASE_PASSWORD", "s3cret")

	value, err := manager.GetSecret(SecretDatabasePassword)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
}

func TestEnvSecretManager_MissingSecret(t *testing.T) {
	manager := &EnvSecretManager{}
	t.Setenv("CASEHUB_MESSAGING_PASSWORD", "")

	_, err := manager.GetSecret(SecretMessagingPassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestNewSecretManager(t *testing.T) {
	cfg := &Config{}

	manager, err := NewSecretManager(cfg)
	require.NoError(t, err)
	assert.IsType(t, &EnvSecretManager{}, manager)

	cfg.Secrets.Provider = "vault"
	cfg.Secrets.Vault.Address = "http://127.0.0.1:8200"
	manager, err = NewSecretManager(cfg)
	require.NoError(t, err)
	assert.IsType(t, &VaultSecretManager{}, manager)

	cfg.Secrets.Provider = "aws"
	cfg.Secrets.AWS.Region = "eu-west-1"
	manager, err = NewSecretManager(cfg)
	require.NoError(t, err)
	assert.IsType(t, &AWSSecretManager{}, manager)

	cfg.Secrets.Provider = "keychain"
	_, err = NewSecretManager(cfg)
	assert.Error(t, err)
}

func TestVaultSecretManager_GetSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		switch r.URL.Path {
		case "/v1/secret/casehub":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"database_password": "from-vault"},
			})
		case "/v1/kv/data/casehub":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data": map[string]interface{}{"messaging_password": "from-kv2"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := &Config{}
	cfg.Secrets.Vault.Address = srv.URL
	cfg.Secrets.Vault.Token = "test-token"

	manager, err := NewVaultSecretManager(cfg)
	require.NoError(t, err)

	value, err := manager.GetSecret(SecretDatabasePassword)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)

	_, err = manager.GetSecret(SecretCoordinationPassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	cfg.Secrets.Vault.Path = "kv/data/casehub"
	manager, err = NewVaultSecretManager(cfg)
	require.NoError(t, err)
	value, err = manager.GetSecret(SecretMessagingPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-kv2", value)

	cfg.Secrets.Vault.Path = "secret/absent"
	manager, err = NewVaultSecretManager(cfg)
	require.NoError(t, err)
	_, err = manager.GetSecret(SecretMessagingPassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestAWSSecretManager_GetSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Name":         "casehub/secrets",
			"SecretString": `{"coordination_password":"from-aws"}`,
		})
	}))
	defer srv.Close()

	cfg := &Config{}
	cfg.Secrets.AWS.Region = "us-east-1"
	cfg.Secrets.AWS.AccessKey = "AKIATEST"
	cfg.Secrets.AWS.SecretKey = "secret"
	cfg.Secrets.AWS.Endpoint = srv.URL

	manager, err := NewAWSSecretManager(cfg)
	require.NoError(t, err)

	value, err := manager.GetSecret(SecretCoordinationPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-aws", value)

	_, err = manager.GetSecret(SecretDatabasePassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestLoadSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Password = "configured"
	cfg.Messaging.Password = "configured"

	err := LoadSecrets(cfg, mapSecrets{
		SecretDatabasePassword:     "db-secret",
		SecretCoordinationPassword: "etcd-secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "db-secret", cfg.Database.Password)
	assert.Equal(t, "configured", cfg.Messaging.Password, "missing secret leaves the value alone")
	assert.Equal(t, "etcd-secret", cfg.Coordination.Password)
}

func TestLoadSecrets_ProviderFailure(t *testing.T) {
	cfg := &Config{}
	err := LoadSecrets(cfg, brokenSecrets{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), SecretDatabasePassword)
}
