package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return m.topic }
func (m *mockClaim) Partition() int32                         { return m.partition }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

type recordingSink struct {
	lines    []domain.OrderLine
	products []domain.Product
	err      error
}

func (r *recordingSink) Record(_ context.Context, lines ...domain.OrderLine) error {
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, lines...)
	return nil
}

func (r *recordingSink) UpsertProducts(_ context.Context, products ...domain.Product) error {
	if r.err != nil {
		return r.err
	}
	r.products = append(r.products, products...)
	return nil
}

func retryHeader(count string) []*sarama.RecordHeader {
	return []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte(count)}}
}

func TestNewConsumerErrors(t *testing.T) {
	handler := func(context.Context, *sarama.ConsumerMessage) error { return nil }
	_, err := NewConsumer([]string{"invalid-broker:9092"}, "group", []string{"topic"}, handler)
	require.Error(t, err)
	_, err = NewConsumerWithDLQ([]string{"invalid-broker:9092"}, "group", []string{"topic"}, handler, nil, 3)
	require.Error(t, err)
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, topics []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			require.Equal(t, []string{TopicOrderLines}, topics)
			cancel()
			return nil
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := &Consumer{
		consumer:   group,
		topics:     []string{TopicOrderLines},
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "consumer"),
		maxRetries: 2,
	}

	errorsCh <- errors.New("background error")
	require.NoError(t, consumer.Start(ctx))
	require.NoError(t, consumer.Stop())
	require.Equal(t, 1, consumeCalls)
}

func TestConsumerStopError(t *testing.T) {
	errorsCh := make(chan error)
	group := &mockConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}
	consumer := &Consumer{consumer: group, logger: log.WithField("test", "stop")}
	require.Error(t, consumer.Stop())
}

func TestConsumeClaim_MarksHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	consumer := &Consumer{
		handler:    IngestHandler(sink),
		logger:     log.WithField("test", "claim"),
		maxRetries: 1,
	}

	value, err := json.Marshal(NewOrderLineEvent(domain.OrderLine{
		ID: "l1", ProductID: "p1", BuyerID: "u1", Quantity: 2, PurchasedAt: time.Now(),
	}))
	require.NoError(t, err)

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: TopicOrderLines, messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Topic: TopicOrderLines, Offset: 1, Key: []byte("p1"), Value: value}
	close(claim.messages)

	require.NoError(t, consumer.ConsumeClaim(session, claim))
	require.Len(t, session.marked, 1)
	require.Len(t, sink.lines, 1)
	require.Equal(t, int32(2), sink.lines[0].Quantity)
}

func TestConsumeClaim_FailedHandlerIsNotMarked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return errors.New("failed") },
		logger:     log.WithField("test", "claim-fail"),
		maxRetries: 1,
	}

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: "topic", messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "topic", Offset: 1, Key: []byte("k"), Value: []byte("v")}
	close(claim.messages)

	require.NoError(t, consumer.ConsumeClaim(session, claim))
	require.Empty(t, session.marked)
}

func TestHandleMessageWithRetry(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		consumer := &Consumer{
			handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
			logger:     log.WithField("test", "retry-success"),
			maxRetries: 2,
		}
		require.NoError(t, consumer.handleMessageWithRetry(context.Background(), &sarama.ConsumerMessage{Topic: "topic"}))
	})

	t.Run("remaining attempts are made in process", func(t *testing.T) {
		attempts := 0
		consumer := &Consumer{
			handler: func(context.Context, *sarama.ConsumerMessage) error {
				attempts++
				return errors.New("temporary")
			},
			logger:     log.WithField("test", "retry"),
			maxRetries: 3,
		}
		msg := &sarama.ConsumerMessage{Topic: "topic", Headers: retryHeader("1")}
		require.Error(t, consumer.handleMessageWithRetry(context.Background(), msg))
		require.Equal(t, 2, attempts)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		attempts := 0
		consumer := &Consumer{
			handler: func(context.Context, *sarama.ConsumerMessage) error {
				attempts++
				return domain.ErrInvalidOrderLine
			},
			logger:     log.WithField("test", "permanent"),
			maxRetries: 5,
		}
		require.Error(t, consumer.handleMessageWithRetry(context.Background(), &sarama.ConsumerMessage{Topic: "topic"}))
		require.Equal(t, 1, attempts)
	})

	t.Run("exhausted retries go to dlq", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var msg DLQMessage
			if err := json.Unmarshal(val, &msg); err != nil {
				return err
			}
			if msg.OriginalTopic != TopicOrderLines || msg.ErrorMessage != "permanent" {
				return errors.New("unexpected dlq payload")
			}
			return nil
		})
		consumer := &Consumer{
			handler:     func(context.Context, *sarama.ConsumerMessage) error { return errors.New("permanent") },
			dlqProducer: NewProducerFromSync(mockProducer, log.WithField("test", "dlq")),
			logger:      log.WithField("test", "max-dlq"),
			maxRetries:  3,
		}
		msg := &sarama.ConsumerMessage{Topic: TopicOrderLines, Key: []byte("p1"), Value: []byte("{}"), Headers: retryHeader("3")}
		require.NoError(t, consumer.handleMessageWithRetry(context.Background(), msg))
		require.NoError(t, mockProducer.Close())
	})

	t.Run("dlq failure is reported", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		consumer := &Consumer{
			handler:     func(context.Context, *sarama.ConsumerMessage) error { return errors.New("permanent") },
			dlqProducer: NewProducerFromSync(mockProducer, log.WithField("test", "dlq")),
			logger:      log.WithField("test", "max-dlq-fail"),
			maxRetries:  3,
		}
		msg := &sarama.ConsumerMessage{Topic: "topic", Key: []byte("key"), Headers: retryHeader("3")}
		require.Error(t, consumer.handleMessageWithRetry(context.Background(), msg))
		require.NoError(t, mockProducer.Close())
	})
}

func TestGetRetryCount(t *testing.T) {
	consumer := &Consumer{}
	require.Equal(t, 5, consumer.getRetryCount(&sarama.ConsumerMessage{Headers: retryHeader("5")}))
	require.Equal(t, 0, consumer.getRetryCount(&sarama.ConsumerMessage{Headers: retryHeader("bad")}))
	require.Equal(t, 0, consumer.getRetryCount(&sarama.ConsumerMessage{}))
}

func TestIngestHandler(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	handler := IngestHandler(sink)

	product, err := json.Marshal(NewProductEvent(domain.Product{
		ID: "p1", Category: "flowers", Name: "Rose", PriceMinor: 100, CreatedAt: time.Now(),
	}))
	require.NoError(t, err)
	require.NoError(t, handler(ctx, &sarama.ConsumerMessage{Topic: TopicProducts, Value: product}))
	require.Len(t, sink.products, 1)
	require.Equal(t, "Rose", sink.products[0].Name)

	err = handler(ctx, &sarama.ConsumerMessage{Topic: TopicOrderLines, Value: []byte("{")})
	require.ErrorIs(t, err, ErrPermanent)

	err = handler(ctx, &sarama.ConsumerMessage{Topic: "unknown", Value: []byte("{}")})
	require.ErrorIs(t, err, ErrPermanent)

	sink.err = errors.New("ledger down")
	line, err := json.Marshal(NewOrderLineEvent(domain.OrderLine{ID: "l1", ProductID: "p1", BuyerID: "u1", Quantity: 1, PurchasedAt: time.Now()}))
	require.NoError(t, err)
	err = handler(ctx, &sarama.ConsumerMessage{Topic: TopicOrderLines, Value: line})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPermanent)
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "claim-stop"),
		maxRetries: 1,
	}
	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: "topic", messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
