/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	saramaMetrics "github.com/rcrowley/go-metrics"
)

func init() {
	saramaMetrics.UseNilMetrics = true
}

type RequiredAcks int

const (
	// NoResponse doesn't send any response, the TCP ACK is all you get.
	NoResponse RequiredAcks = 0

	// WaitForLeader waits for only the local commit to succeed before responding.
	WaitForLeader RequiredAcks = 1

	// WaitForAll waits for all in-sync replicas to commit before responding.
	// The minimum number of in-sync replicas is configured on the broker via
	// the `min.insync.replicas` configuration key.
	WaitForAll RequiredAcks = -1
)

func (ack RequiredAcks) String() string {
	a := `NoResponse`

	if ack == WaitForLeader {
		a = `WaitForLeader`
	}

	if ack == WaitForAll {
		a = `WaitForAll`
	}

	return a
}

type Config struct {
	Id               string
	BootstrapServers []string
	RequiredAcks     RequiredAcks
	Retry            int
	RetryBackOff     time.Duration
	Logger           log.Logger
	MetricsReporter  metrics.Reporter
	*sarama.Config
}

func NewConfig() *Config {
	c := &Config{
		Id:              `stream-join`,
		RequiredAcks:    WaitForAll,
		Retry:           5,
		RetryBackOff:    30 * time.Millisecond,
		Logger:          log.NewNoopLogger(),
		MetricsReporter: metrics.NoopReporter(),
		Config:          sarama.NewConfig(),
	}

	return c
}

func (c *Config) apply() {
	c.Config.ClientID = c.Id
	c.Config.Producer.RequiredAcks = sarama.RequiredAcks(c.RequiredAcks)
	c.Config.Producer.Retry.Max = c.Retry
	c.Config.Producer.Retry.Backoff = c.RetryBackOff
	c.Config.Producer.Return.Successes = true
	c.Config.Producer.Return.Errors = true
}

// Message is an encoded join output.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Timestamp time.Time
}

type Producer interface {
	Produce(ctx context.Context, message *Message) (partition int32, offset int64, err error)
	ProduceBatch(ctx context.Context, messages []*Message) error
	Close() error
}

type saramaProducer struct {
	id             string
	saramaProducer sarama.SyncProducer
	logger         log.Logger
	metrics        *metricsReporter
}

type metricsReporter struct {
	produceLatency      metrics.Observer
	batchProduceLatency metrics.Observer
}

func NewProducer(configs *Config) (Producer, error) {
	configs.apply()

	configs.Logger.Info(fmt.Sprintf(`producer [%s] initiating...`, configs.Id))
	prd, err := sarama.NewSyncProducer(configs.BootstrapServers, configs.Config)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`producer [%s] init failed`, configs.Id))
	}

	defer configs.Logger.Info(fmt.Sprintf(`producer [%s] initiated`, configs.Id))

	return newProducer(configs, prd), nil
}

// NewProducerFrom wraps an existing sarama producer.
func NewProducerFrom(configs *Config, prd sarama.SyncProducer) Producer {
	return newProducer(configs, prd)
}

func newProducer(configs *Config, prd sarama.SyncProducer) *saramaProducer {
	labels := []string{`topic`, `partition`}
	return &saramaProducer{
		id:             configs.Id,
		saramaProducer: prd,
		logger:         configs.Logger.NewLog(log.Prefixed(`producer`)),
		metrics: &metricsReporter{
			produceLatency: configs.MetricsReporter.Observer(metrics.MetricConf{
				Path:   `stream_join_producer_produced_latency_microseconds`,
				Labels: labels,
			}),
			batchProduceLatency: configs.MetricsReporter.Observer(metrics.MetricConf{
				Path:   `stream_join_producer_batch_produced_latency_microseconds`,
				Labels: append(labels, `size`),
			}),
		},
	}
}

func (p *saramaProducer) Close() error {
	defer p.logger.Info(fmt.Sprintf(`producer [%s] closed`, p.id))
	return p.saramaProducer.Close()
}

func toSarama(message *Message, t time.Time) *sarama.ProducerMessage {
	m := &sarama.ProducerMessage{
		Topic:     message.Topic,
		Value:     sarama.ByteEncoder(message.Value),
		Timestamp: t,
	}

	if message.Key != nil {
		m.Key = sarama.ByteEncoder(message.Key)
	}

	if !message.Timestamp.IsZero() {
		m.Timestamp = message.Timestamp
	}

	if message.Partition > 0 {
		m.Partition = message.Partition
	}

	return m
}

func (p *saramaProducer) Produce(ctx context.Context, message *Message) (partition int32, offset int64, err error) {
	t := time.Now()

	pr, o, err := p.saramaProducer.SendMessage(toSarama(message, t))
	if err != nil {
		return 0, 0, errors.WithPrevious(err, `cannot send message`)
	}

	p.metrics.produceLatency.Observe(float64(time.Since(t).Nanoseconds()/1e3), map[string]string{
		`topic`:     message.Topic,
		`partition`: fmt.Sprint(pr),
	})

	p.logger.DebugContext(ctx, fmt.Sprintf(`delivered message to topic %s [%d] at offset %d`,
		message.Topic, pr, o))

	return pr, o, nil
}

func (p *saramaProducer) ProduceBatch(ctx context.Context, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	t := time.Now()
	saramaMessages := make([]*sarama.ProducerMessage, 0, len(messages))
	for _, message := range messages {
		saramaMessages = append(saramaMessages, toSarama(message, t))
	}

	if err := p.saramaProducer.SendMessages(saramaMessages); err != nil {
		return errors.WithPrevious(err, `cannot produce batch`)
	}

	partition := fmt.Sprint(messages[0].Partition)
	p.metrics.batchProduceLatency.Observe(float64(time.Since(t).Nanoseconds()/1e3), map[string]string{
		`topic`:     messages[0].Topic,
		`partition`: partition,
		`size`:      fmt.Sprint(len(messages)),
	})
	p.logger.DebugContext(ctx, fmt.Sprintf(`message bulk delivered %s[%s]`, messages[0].Topic, partition))

	return nil
}
