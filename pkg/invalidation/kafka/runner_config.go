package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type Driver string

const (
	DriverNone  Driver = "none"
	DriverKafka Driver = "kafka"
)

type TLSConfig struct {
	Enable     bool   `yaml:"enable"`
	CaFile     string `yaml:"ca_file"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	SkipVerify bool   `yaml:"skip_verify"`
}

type SASLConfig struct {
	Enable    bool   `yaml:"enable"`
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type InvalidationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  Driver `yaml:"driver"`

	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`

	SessionTimeout   time.Duration `yaml:"session_timeout"`
	Heartbeat        time.Duration `yaml:"heartbeat"`
	RebalanceTimeout time.Duration `yaml:"rebalance_timeout"`
	InitialOldest    bool          `yaml:"initial_oldest"`

	TLS  TLSConfig  `yaml:"tls"`
	SASL SASLConfig `yaml:"sasl"`
}

func FromEnv() InvalidationConfig {
	enabled := strings.ToLower(os.Getenv("INVALIDATION_ENABLED")) == "true"
	driver := Driver(strings.TrimSpace(os.Getenv("INVALIDATION_DRIVER")))
	if driver == "" {
		driver = DriverNone
	}
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))
	if topic == "" {
		topic = "poi-tile-invalidation"
	}
	group := strings.TrimSpace(os.Getenv("KAFKA_GROUP_ID"))
	if group == "" {
		group = "poi-tile-invalidator"
	}

	return InvalidationConfig{
		Enabled:          enabled,
		Driver:           driver,
		Brokers:          split(brokers),
		Topic:            topic,
		GroupID:          group,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    true,
		TLS: TLSConfig{
			Enable:     envBool("KAFKA_TLS_ENABLE"),
			CaFile:     strings.TrimSpace(os.Getenv("KAFKA_TLS_CA_FILE")),
			CertFile:   strings.TrimSpace(os.Getenv("KAFKA_TLS_CERT_FILE")),
			KeyFile:    strings.TrimSpace(os.Getenv("KAFKA_TLS_KEY_FILE")),
			SkipVerify: envBool("KAFKA_TLS_SKIP_VERIFY"),
		},
		SASL: SASLConfig{
			Enable:    envBool("KAFKA_SASL_ENABLE"),
			Mechanism: strings.TrimSpace(os.Getenv("KAFKA_SASL_MECHANISM")),
			Username:  os.Getenv("KAFKA_SASL_USERNAME"),
			Password:  os.Getenv("KAFKA_SASL_PASSWORD"),
		},
	}
}

func envBool(k string) bool { return strings.ToLower(strings.TrimSpace(os.Getenv(k))) == "true" }

// saramaConfig applies the shared client settings: protocol version, TLS and
// SASL.
func (c InvalidationConfig) saramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0

	if c.TLS.Enable {
		tc := &tls.Config{InsecureSkipVerify: c.TLS.SkipVerify, MinVersion: tls.VersionTLS12}
		if c.TLS.CaFile != "" {
			pem, err := os.ReadFile(c.TLS.CaFile)
			if err != nil {
				return nil, fmt.Errorf("read kafka CA: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("kafka CA %s: no certificates", c.TLS.CaFile)
			}
			tc.RootCAs = pool
		}
		if c.TLS.CertFile != "" || c.TLS.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load kafka client cert: %w", err)
			}
			tc.Certificates = []tls.Certificate{cert}
		}
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = tc
	}

	if c.SASL.Enable {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.User = c.SASL.Username
		cfg.Net.SASL.Password = c.SASL.Password
		switch strings.ToUpper(c.SASL.Mechanism) {
		case "", sarama.SASLTypePlaintext:
			cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			return nil, fmt.Errorf("unsupported kafka SASL mechanism %q", c.SASL.Mechanism)
		}
	}
	return cfg, nil
}

func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
