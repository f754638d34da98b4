package kafka

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
)

// DeliveryFailureFunc observes a message the async producer gave up on.
type DeliveryFailureFunc func(topic string, err error)

// Producer owns a sarama async producer. Delivery failures surface on a
// background goroutine and are logged and reported to the failure hook.
type Producer struct {
	async     sarama.AsyncProducer
	prefix    string
	onFailure DeliveryFailureFunc
	logger    *zap.Logger
	drained   sync.WaitGroup
	closeOnce sync.Once
}

// SaramaConfig returns the producer settings for account events: leader acks,
// small batches and snappy compression. Successes are not returned.
func SaramaConfig(cfg config.KafkaSettings) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Flush.Frequency = 50 * time.Millisecond
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	return sc
}

// NewProducer connects to cfg.Brokers. onFailure may be nil.
func NewProducer(cfg config.KafkaSettings, onFailure DeliveryFailureFunc, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer needs at least one broker")
	}
	async, err := sarama.NewAsyncProducer(cfg.Brokers, SaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(async, cfg.TopicPrefix, onFailure, logger), nil
}

func newProducer(async sarama.AsyncProducer, prefix string, onFailure DeliveryFailureFunc, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		async:     async,
		prefix:    strings.TrimSuffix(prefix, "."),
		onFailure: onFailure,
		logger:    logger,
	}
	p.drained.Add(1)
	go p.drainErrors()
	return p
}

// drainErrors runs until the async producer closes its error channel.
func (p *Producer) drainErrors() {
	defer p.drained.Done()
	for perr := range p.async.Errors() {
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("kafka delivery failed", zap.String("topic", topic), zap.Error(perr.Err))
		if p.onFailure != nil {
			p.onFailure(topic, perr.Err)
		}
	}
}

// Input is the channel messages are queued on.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.async.Input()
}

// Topic prefixes eventType with the configured namespace.
func (p *Producer) Topic(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Close flushes queued messages and waits for the error drain to finish.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := p.async.Close(); cerr != nil {
			err = fmt.Errorf("close kafka producer: %w", cerr)
		}
		p.drained.Wait()
	})
	return err
}
