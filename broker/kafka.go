package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Env is the broker configuration read from the environment. The OCI
// streaming bootstrap variable takes precedence over the generic Kafka one.
type Env struct {
	Bootstrap     string
	SASLMechanism string
	Username      string
	Password      string
	Protocol      string
	CALocation    string
}

// FromEnv reads the broker configuration. Protocol defaults to SASL_SSL when
// credentials are present and PLAINTEXT otherwise.
func FromEnv() Env {
	e := Env{
		Bootstrap:     firstNonEmpty(os.Getenv("OCI_STREAMING_BOOTSTRAP"), os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),
		SASLMechanism: firstNonEmpty(os.Getenv("SASL_MECHANISM"), "PLAIN"),
		Username:      os.Getenv("SASL_USERNAME"),
		Password:      os.Getenv("SASL_PASSWORD"),
		Protocol:      os.Getenv("SECURITY_PROTOCOL"),
		CALocation:    os.Getenv("SSL_CA_LOCATION"),
	}
	if e.Protocol == "" {
		if e.Username != "" && e.Password != "" {
			e.Protocol = "SASL_SSL"
		} else {
			e.Protocol = "PLAINTEXT"
		}
	}
	return e
}

// Configured reports whether a bootstrap address is set.
func (e Env) Configured() bool {
	return e.Bootstrap != ""
}

func (e Env) brokers() []string {
	parts := strings.Split(e.Bootstrap, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e Env) saslMechanism() (sasl.Mechanism, error) {
	if e.Username == "" || e.Password == "" {
		return nil, nil
	}
	switch strings.ToUpper(e.SASLMechanism) {
	case "PLAIN":
		return plain.Mechanism{Username: e.Username, Password: e.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, e.Username, e.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, e.Username, e.Password)
	default:
		return nil, fmt.Errorf("broker: unsupported SASL mechanism %q", e.SASLMechanism)
	}
}

func (e Env) tlsConfig() (*tls.Config, error) {
	if !strings.Contains(strings.ToUpper(e.Protocol), "SSL") {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if e.CALocation != "" {
		pem, err := os.ReadFile(e.CALocation)
		if err != nil {
			return nil, fmt.Errorf("broker: read CA %s: %w", e.CALocation, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("broker: no certificates in %s", e.CALocation)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// kafkaProducer adapts a kafka-go writer to the Producer capability.
type kafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer builds a Kafka producer from the environment configuration.
// Returns (nil, nil) when no bootstrap address is configured: the capability
// is Unavailable and callers fall back to the outbox.
func NewProducer(e Env) (Producer, error) {
	if !e.Configured() {
		return nil, nil
	}
	mech, err := e.saslMechanism()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := e.tlsConfig()
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(e.brokers()...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Transport: &kafka.Transport{
			SASL:        mech,
			TLS:         tlsCfg,
			DialTimeout: 10 * time.Second,
		},
		AllowAutoTopicCreation: true,
	}
	return &kafkaProducer{writer: w}, nil
}

// Publish implements Producer.
func (p *kafkaProducer) Publish(ctx context.Context, topic string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: value})
	if err != nil {
		return fmt.Errorf("broker: publish to %q: %w", topic, err)
	}
	return nil
}

// Close implements Producer.
func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// kafkaConsumer adapts a kafka-go reader to the Consumer capability.
type kafkaConsumer struct {
	reader *kafka.Reader
}

// NewConsumer builds a Kafka consumer group reader for the given group and
// topic. Returns an error when no bootstrap address is configured; unlike
// publishing, consuming has no outbox fallback.
func NewConsumer(e Env, groupID, topic string) (Consumer, error) {
	if !e.Configured() {
		return nil, fmt.Errorf("broker: bootstrap address not configured")
	}
	mech, err := e.saslMechanism()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := e.tlsConfig()
	if err != nil {
		return nil, err
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     e.brokers(),
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mech,
			TLS:           tlsCfg,
		},
	})
	return &kafkaConsumer{reader: r}, nil
}

// Fetch implements Consumer.
func (c *kafkaConsumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: m.Topic, Value: m.Value}, nil
}

// Close implements Consumer.
func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
