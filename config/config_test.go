package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayersOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
policy:
  partner_response_days: 21
notifications:
  channel: kafka
  kafka:
    brokers: ["localhost:9092"]
store:
  driver: sqlite
  dsn: "file:cases.db"
`))
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Policy.PartnerResponseDays)
	assert.Equal(t, 43, cfg.Policy.FinalOrderEligibleDays)
	assert.Equal(t, 16, cfg.Policy.AosResponseDays)
	assert.Equal(t, "casework.notifications.email", cfg.Notifications.Kafka.EmailTopic)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative offset":  "policy:\n  aos_response_days: -1\n",
		"bad timezone":     "policy:\n  timezone: Mars/Olympus\n",
		"sqlite no dsn":    "store:\n  driver: sqlite\n",
		"unknown driver":   "store:\n  driver: oracle\n",
		"kafka no brokers": "notifications:\n  channel: kafka\n",
		"unknown channel":  "notifications:\n  channel: pigeon\n",
		"scanner schedule": "scanner:\n  enabled: true\n  schedule: \"\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "casework.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPolicyDateArithmetic(t *testing.T) {
	p := DefaultPolicy()
	loc := p.Location()

	// 23:30 UTC on 30 March 2025 is 00:30 BST on 31 March.
	submitted := time.Date(2025, time.March, 30, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.April, 14, 0, 0, 0, 0, loc), p.RespondBy(submitted))

	granted := time.Date(2025, time.January, 2, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, time.February, 14, 0, 0, 0, 0, loc), p.FinalOrderEligibleFrom(granted))

	issued := time.Date(2025, time.October, 20, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, time.November, 5, 0, 0, 0, 0, loc), p.AosDue(issued))
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, loc), p.HoldingEnds(issued))
}
