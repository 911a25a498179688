// Package config loads the service configuration and the policy offsets that
// drive derived deadlines.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Policy        Policy             `json:"policy" yaml:"policy"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Store         StoreConfig        `json:"store" yaml:"store"`
	Scanner       ScannerConfig      `json:"scanner" yaml:"scanner"`
	Log           LogConfig          `json:"log" yaml:"log"`
	Metrics       MetricsConfig      `json:"metrics" yaml:"metrics"`
}

// Policy holds statutory and policy day offsets. They are kept apart even where
// values coincide.
type Policy struct {
	PartnerResponseDays    int    `json:"partner_response_days" yaml:"partner_response_days"`
	AosResponseDays        int    `json:"aos_response_days" yaml:"aos_response_days"`
	FinalOrderEligibleDays int    `json:"final_order_eligible_days" yaml:"final_order_eligible_days"`
	HoldingPeriodDays      int    `json:"holding_period_days" yaml:"holding_period_days"`
	ClarificationDays      int    `json:"clarification_days" yaml:"clarification_days"`
	Timezone               string `json:"timezone" yaml:"timezone"`
}

// NotificationConfig configures the notification pipeline.
type NotificationConfig struct {
	NotifyPendingPartner bool              `json:"notify_pending_partner" yaml:"notify_pending_partner"`
	Channel              string            `json:"channel" yaml:"channel"`
	Templates            map[string]string `json:"templates,omitempty" yaml:"templates,omitempty"`
	DeliveryLog          string            `json:"delivery_log" yaml:"delivery_log"`
	Kafka                KafkaConfig       `json:"kafka" yaml:"kafka"`
}

// KafkaConfig configures the Kafka delivery channel.
type KafkaConfig struct {
	Brokers     []string `json:"brokers,omitempty" yaml:"brokers,omitempty"`
	EmailTopic  string   `json:"email_topic" yaml:"email_topic"`
	LetterTopic string   `json:"letter_topic" yaml:"letter_topic"`
}

// StoreConfig selects the case store.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// ScannerConfig configures the due-date sweeper.
type ScannerConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Schedule string `json:"schedule" yaml:"schedule"`
	ActorID  string `json:"actor_id" yaml:"actor_id"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Address string `json:"address" yaml:"address"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Policy: DefaultPolicy(),
		Notifications: NotificationConfig{
			Channel:     "log",
			DeliveryLog: "memory",
			Kafka: KafkaConfig{
				EmailTopic:  "casework.notifications.email",
				LetterTopic: "casework.notifications.letter",
			},
		},
		Store:   StoreConfig{Driver: "memory"},
		Scanner: ScannerConfig{Schedule: "0 2 * * *", ActorID: "system"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Address: ":9090"},
	}
}

// DefaultPolicy returns the policy offsets applied in England and Wales.
func DefaultPolicy() Policy {
	return Policy{
		PartnerResponseDays:    14,
		AosResponseDays:        16,
		FinalOrderEligibleDays: 43,
		HoldingPeriodDays:      141,
		ClarificationDays:      14,
		Timezone:               "Europe/London",
	}
}

// Load reads and validates a YAML (or JSON) file layered over Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes data layered over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store: sqlite driver requires a dsn")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	switch strings.ToLower(c.Notifications.Channel) {
	case "log":
	case "kafka":
		if len(c.Notifications.Kafka.Brokers) == 0 {
			return fmt.Errorf("notifications: kafka channel requires brokers")
		}
		if c.Notifications.Kafka.EmailTopic == "" || c.Notifications.Kafka.LetterTopic == "" {
			return fmt.Errorf("notifications: kafka channel requires email and letter topics")
		}
	default:
		return fmt.Errorf("notifications: unknown channel %q", c.Notifications.Channel)
	}
	switch strings.ToLower(c.Notifications.DeliveryLog) {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("notifications: unknown delivery log %q", c.Notifications.DeliveryLog)
	}
	if c.Scanner.Enabled && strings.TrimSpace(c.Scanner.Schedule) == "" {
		return fmt.Errorf("scanner: schedule required when enabled")
	}
	return nil
}

// Validate checks the policy offsets.
func (p Policy) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"partner_response_days", p.PartnerResponseDays},
		{"aos_response_days", p.AosResponseDays},
		{"final_order_eligible_days", p.FinalOrderEligibleDays},
		{"holding_period_days", p.HoldingPeriodDays},
		{"clarification_days", p.ClarificationDays},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%s must be positive", c.name)
		}
	}
	if _, err := time.LoadLocation(p.timezone()); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

func (p Policy) timezone() string {
	if tz := strings.TrimSpace(p.Timezone); tz != "" {
		return tz
	}
	return "Europe/London"
}
