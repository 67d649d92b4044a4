package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Web         WebConfig         `yaml:"web"`
	Security    SecurityConfig    `yaml:"security"`
	Redis       RedisConfig       `yaml:"redis"`
	Messaging   MessagingConfig   `yaml:"messaging"`
	Mail        MailConfig        `yaml:"mail"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SecurityConfig struct {
	EncryptionSecret string `yaml:"encryption_secret"`
	FacilityMapper   string `yaml:"facility_mapper"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type MessagingConfig struct {
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	RecordsTopic        string        `yaml:"records_topic"`
	AcksTopic           string        `yaml:"acks_topic"`
	ExceptionsTopic     string        `yaml:"exceptions_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type MailConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	From      string   `yaml:"from"`
	Receivers []string `yaml:"receivers"`
	Schedule  string   `yaml:"schedule"`
}

type IdempotencyConfig struct {
	Window      time.Duration `yaml:"window"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "clinicore.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "clinicore",
				User:     "clinicore",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Security: SecurityConfig{
			EncryptionSecret: "",
			FacilityMapper:   "facility-mapper.json",
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
			Channel:  "clinicore.events",
		},
		Messaging: MessagingConfig{
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "clinicore",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "clinicore",
			},
			RecordsTopic:        "clinicore.records",
			AcksTopic:           "clinicore.sync.acks",
			ExceptionsTopic:     "clinicore/exceptions",
			OutboxDrainInterval: 5 * time.Second,
		},
		Mail: MailConfig{
			Host:     "localhost",
			Port:     465,
			Schedule: "13 * * * *",
		},
		Idempotency: IdempotencyConfig{
			Window:      10 * time.Second,
			WaitTimeout: 30 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot serve requests at all.
// Missing connection settings are a startup fault, not a per-request one.
func (c *Config) Validate() error {
	if c.Security.EncryptionSecret == "" {
		return fmt.Errorf("security.encryption_secret is required")
	}
	if c.Database.Driver == "postgres" {
		pg := c.Database.Postgres
		if pg.Host == "" || pg.Port == 0 || pg.Database == "" || pg.User == "" {
			return fmt.Errorf("database configuration is incomplete")
		}
	}
	return nil
}
