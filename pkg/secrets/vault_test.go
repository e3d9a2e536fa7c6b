package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, wantPath, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != wantPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApplyVaultSecrets_KV2(t *testing.T) {
	srv := vaultServer(t, "/v1/secret/data/provider-directory",
		`{"data":{"data":{"DB_PASSWORD":"s3cret","REDIS_DB":2,"RATING_ATOMIC_SQL":true},"metadata":{}}}`)

	t.Setenv("DB_PASSWORD", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("RATING_ATOMIC_SQL", "false")

	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled:   true,
		Addr:      srv.URL,
		Token:     "root",
		Mount:     "secret",
		Path:      "provider-directory",
		KVVersion: 2,
		Timeout:   time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped, "existing values are kept without Overwrite")
	assert.Equal(t, "s3cret", os.Getenv("DB_PASSWORD"))
	assert.Equal(t, "2", os.Getenv("REDIS_DB"))
	assert.Equal(t, "false", os.Getenv("RATING_ATOMIC_SQL"))
}

func TestApplyVaultSecrets_KV1Overwrite(t *testing.T) {
	srv := vaultServer(t, "/v1/kv/app", `{"data":{"DB_USER":"directory"}}`)
	t.Setenv("DB_USER", "postgres")

	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled:   true,
		Addr:      srv.URL + "/",
		Token:     "root",
		Mount:     "/kv/",
		Path:      "/app",
		KVVersion: 1,
		Timeout:   time.Second,
		Overwrite: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, "directory", os.Getenv("DB_USER"))
}

func TestApplyVaultSecrets_Errors(t *testing.T) {
	srv := vaultServer(t, "/v1/secret/data/app", `{"data":null}`)

	tests := []struct {
		name string
		cfg  VaultConfig
	}{
		{"incomplete", VaultConfig{Enabled: true, Addr: srv.URL}},
		{"bad token", VaultConfig{Enabled: true, Addr: srv.URL, Token: "nope", Mount: "secret", Path: "app", KVVersion: 2, Timeout: time.Second}},
		{"missing data", VaultConfig{Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "app", KVVersion: 2, Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyVaultSecrets(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestLoadVaultConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "TRUE")
	t.Setenv("VAULT_PATH", "from-env")
	t.Setenv("VAULT_KV_VERSION", "1")
	t.Setenv("VAULT_TIMEOUT_MS", "250")
	t.Setenv("VAULT_MOUNT", "")

	cfg := LoadVaultConfigFromEnv("override")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "override", cfg.Path)
	assert.Equal(t, "secret", cfg.Mount)
	assert.Equal(t, 1, cfg.KVVersion)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}
