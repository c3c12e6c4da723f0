package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
chain:
  served: near
database:
  host: localhost
  user: relayer
  password: secret
settlement:
  base_url: http://settlement.local
signer:
  base_url: http://signer.local
  base_path: m/44'/397'/0'
execution:
  base_url: http://execution.local
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, intent.ChainNear, cfg.Chain.Served)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Queue.Backoff())
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 2*time.Hour, cfg.Poller.MaxWait)
	assert.Equal(t, "ed25519", cfg.Signer.KeyType)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsInvalidChain(t *testing.T) {
	path := writeConfig(t, `
chain:
  served: dogecoin
database:
  host: localhost
settlement:
  base_url: http://settlement.local
signer:
  base_url: http://signer.local
  base_path: m/44'/397'/0'
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.served")
}

func TestLoadRequiresSettlementURL(t *testing.T) {
	path := writeConfig(t, `
chain:
  served: solana
database:
  host: localhost
signer:
  base_url: http://signer.local
  base_path: m/44'/501'/0'
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settlement.base_url")
}
