package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

const (
	// maxStoredErrors is the maximum number of errors to keep in memory
	// This prevents unbounded memory growth during long-running operations
	maxStoredErrors = 100
)

// Producer sends account lifecycle events to Kafka using an asynchronous producer
type Producer struct {
	producer  sarama.AsyncProducer
	topic     string
	logger    zerolog.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	closed    bool       // Indicates if producer has been closed
	closeMu   sync.Mutex // Protects closed and closeErr
	errors    []error    // Collect all errors during operation
	errorsMu  sync.Mutex
}

// ProducerConfig holds configuration for the Kafka producer
type ProducerConfig struct {
	Brokers         []string       // Kafka broker addresses
	Topic           string         // Topic name for account events
	Logger          zerolog.Logger // Logger for monitoring
	MaxMessageBytes int            // Max message size in bytes (default: 1MB)
	MaxRetries      int            // Max retries for failed sends (default: 5)
}

// ValidateBrokers checks if Kafka brokers are accessible
// Returns error if cannot connect to any broker
func ValidateBrokers(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers specified")
	}

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka brokers: %w", err)
	}
	defer client.Close()

	if err := client.RefreshMetadata(); err != nil {
		return fmt.Errorf("failed to refresh metadata from Kafka: %w", err)
	}

	return nil
}

// NewProducer creates a new Kafka producer with async producer configuration
//
// Configuration highlights:
// - Asynchronous producer for high throughput
// - Snappy compression for bandwidth optimization
// - Idempotent mode for at-least-once delivery with deduplication
// - Hash partitioner based on account_id for ordering guarantees
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers specified")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	// Set defaults for optional config values
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 1000000 // 1MB default
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5 // 5 retries default
	}

	config := sarama.NewConfig()

	// Producer settings for high performance and reliability
	config.Producer.Return.Successes = true // Required for async producer monitoring
	config.Producer.Return.Errors = true    // Required for error handling

	// Compression: Snappy (good balance between speed and compression ratio)
	config.Producer.Compression = sarama.CompressionSnappy

	// Idempotent mode: ensures at-least-once delivery with automatic deduplication
	// Note: This is NOT exactly-once semantics, which requires transactions
	config.Producer.Idempotent = true
	config.Producer.RequiredAcks = sarama.WaitForAll // Required for idempotent producer
	config.Net.MaxOpenRequests = 1                   // Required for idempotent producer
	config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	config.Producer.Retry.Max = cfg.MaxRetries

	// Partitioner: hash by account_id for event ordering per account
	config.Producer.Partitioner = sarama.NewHashPartitioner

	// Set client ID for identification
	config.ClientID = "account-pool-producer"

	// Kafka version compatibility (using stable version)
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   cfg.Logger,
		errors:   make([]error, 0),
	}

	// Start goroutines to handle async responses
	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	cfg.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Int("max_message_bytes", cfg.MaxMessageBytes).
		Int("max_retries", cfg.MaxRetries).
		Msg("Kafka producer initialized successfully")

	return p, nil
}

// PublishAccountEvent sends an account lifecycle event to Kafka asynchronously
//
// Uses account_id as the partition key so events for the same account are
// ordered. Returns error if validation fails, the context is cancelled, or
// encoding fails. Actual Kafka send errors are handled asynchronously via the
// error channel.
func (p *Producer) PublishAccountEvent(ctx context.Context, event domain.AccountEvent) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}

	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return fmt.Errorf("producer is closed")
	}
	p.closeMu.Unlock()

	// Check context before expensive operations
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before sending: %w", ctx.Err())
	default:
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal account event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AccountID),
		Value: sarama.ByteEncoder(value),
	}

	select {
	case p.producer.Input() <- msg:
		p.logger.Debug().
			Str("event_type", event.EventType).
			Str("account_id", event.AccountID).
			Str("status", event.Status).
			Msg("Account event queued for sending to Kafka")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while sending message: %w", ctx.Err())
	}
}

func (p *Producer) handleSuccesses() {
	defer p.wg.Done()

	for msg := range p.producer.Successes() {
		p.logger.Debug().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Message sent to Kafka successfully")
	}

	p.logger.Info().Msg("Success handler stopped")
}

func (p *Producer) handleErrors() {
	defer p.wg.Done()

	for producerErr := range p.producer.Errors() {
		p.logger.Error().
			Err(producerErr.Err).
			Str("topic", producerErr.Msg.Topic).
			Interface("key", producerErr.Msg.Key).
			Msg("Failed to send message to Kafka")

		// Collect errors for Close() method (with size limit to prevent memory leak)
		p.errorsMu.Lock()
		if len(p.errors) < maxStoredErrors {
			p.errors = append(p.errors, producerErr.Err)
		} else if len(p.errors) == maxStoredErrors {
			// Log warning only once when limit is reached
			p.logger.Warn().
				Int("max_errors", maxStoredErrors).
				Msg("Maximum stored errors limit reached, subsequent errors will be dropped")
			p.errors = append(p.errors, fmt.Errorf("max errors limit reached, subsequent errors dropped"))
		}
		p.errorsMu.Unlock()
	}

	p.logger.Info().Msg("Error handler stopped")
}

// Close shuts down the producer, draining in-flight messages first.
// Returns an aggregate error if any sends failed during the producer's lifetime.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		p.logger.Info().Msg("Closing Kafka producer")

		// AsyncClose drains the input channel and then closes Successes/Errors
		p.producer.AsyncClose()
		p.wg.Wait()

		p.errorsMu.Lock()
		defer p.errorsMu.Unlock()
		if len(p.errors) > 0 {
			p.closeErr = fmt.Errorf("producer finished with %d send errors, first: %w", len(p.errors), p.errors[0])
		}
	})

	return p.closeErr
}
