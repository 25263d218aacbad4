package sink

import (
	"context"
	"strconv"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/huynhanx03/attackq/pkg/honeytrap/record"
	"github.com/huynhanx03/attackq/pkg/settings"
	"github.com/huynhanx03/attackq/pkg/utils"
)

const (
	defaultKafkaTimeout      = 10  // seconds
	defaultKafkaRetries      = 3   // attempts
	defaultKafkaRetryBackoff = 100 // millis
)

var _ Sink = (*Kafka)(nil)

// Kafka produces each attack document to a topic, keyed by attack ID so
// records for one attack stay on one partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka dials the brokers and builds a synchronous producer.
func NewKafka(cfg *settings.Kafka) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}
	return newKafkaSink(producer, cfg.Topic), nil
}

func newKafkaSink(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func newSaramaConfig(cfg *settings.Kafka) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultKafkaTimeout
	}
	sc.Producer.Timeout = utils.ToDuration(timeout)
	sc.Net.DialTimeout = utils.ToDuration(timeout)

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultKafkaRetries
	}
	sc.Producer.Retry.Max = retries

	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = defaultKafkaRetryBackoff
	}
	sc.Producer.Retry.Backoff = utils.ToDurationMs(backoff)

	if cfg.MaxMessageBytes > 0 {
		sc.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}
	return sc
}

func (k *Kafka) Name() string { return "kafka" }

// Write produces a. sarama's SyncProducer does not take a context; ctx is
// only checked before sending.
func (k *Kafka) Write(ctx context.Context, a *record.Attack) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to convert attack to JSON")
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(a.ID, 10)),
		Value: sarama.ByteEncoder(doc),
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "failed to produce attack to %s", k.topic)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
