// dlq-reprocess перечитывает storefront.dlq и возвращает в исходные топики
// события, упавшие по временным причинам (недоступное хранилище, таймауты).
// События, которые не пройдут валидацию ingest повторно, не переигрываются.
// По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	defaultLimit       = 500
	defaultIdleTimeout = 2 * time.Second

	// headerReplayedFrom указывает, из какой записи DLQ восстановлено событие.
	headerReplayedFrom = "x-replayed-from"
)

type options struct {
	brokers  []string
	dlqTopic string
	// пусто: каждое событие возвращается в свой исходный топик
	targetTopic string
	onlyTopic   string
	// failedAfter отсекает записи, упавшие раньше (нулевое значение: без ограничения)
	failedAfter time.Time
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// verdict — решение по одной записи DLQ.
type verdict string

const (
	verdictReplay   verdict = "replay"
	verdictInvalid  verdict = "invalid"
	verdictFiltered verdict = "filtered"
	verdictBroken   verdict = "broken"
)

type entry struct {
	verdict verdict
	reason  string
	topic   string
	key     string
	value   []byte
	retries int
}

// classify разбирает конверт DLQ и решает, что делать с событием.
func classify(raw []byte, opts options) entry {
	var dlq kafka.DLQMessage
	if err := json.Unmarshal(raw, &dlq); err != nil {
		return entry{verdict: verdictBroken, reason: "undecodable envelope: " + err.Error()}
	}
	if dlq.OriginalValue == "" {
		return entry{verdict: verdictBroken, reason: "empty payload"}
	}

	origin := strings.TrimSpace(dlq.OriginalTopic)
	if opts.onlyTopic != "" && origin != opts.onlyTopic {
		return entry{verdict: verdictFiltered, reason: "topic " + origin, topic: origin}
	}
	if !opts.failedAfter.IsZero() && dlq.FailedAt.Before(opts.failedAfter) {
		return entry{verdict: verdictFiltered, reason: "failed at " + dlq.FailedAt.Format(time.RFC3339), topic: origin}
	}

	e := entry{
		topic:   origin,
		key:     dlq.OriginalKey,
		value:   []byte(dlq.OriginalValue),
		retries: dlq.RetryCount,
	}
	if opts.targetTopic != "" {
		e.topic = opts.targetTopic
	}
	if e.topic == "" {
		e.verdict, e.reason = verdictBroken, "no original topic"
		return e
	}

	if err := validatePayload(origin, e.value); err != nil {
		e.verdict, e.reason = verdictInvalid, err.Error()
		return e
	}
	e.verdict = verdictReplay
	return e
}

// validatePayload повторяет проверки ingest для известных топиков.
func validatePayload(topic string, value []byte) error {
	switch topic {
	case kafka.TopicOrderLines:
		var event kafka.OrderLineEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode order line: %w", err)
		}
		return event.OrderLine().Validate()
	case kafka.TopicProducts:
		var event kafka.ProductEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode product: %w", err)
		}
		return event.Product().Validate()
	default:
		return nil
	}
}

// tally собирает итоги прохода по DLQ.
type tally struct {
	scanned  int
	verdicts map[verdict]int
	// replayed по целевым топикам
	replayed map[string]int
}

func newTally() *tally {
	return &tally{verdicts: make(map[verdict]int), replayed: make(map[string]int)}
}

func (t *tally) add(e entry) {
	t.scanned++
	t.verdicts[e.verdict]++
	if e.verdict == verdictReplay {
		t.replayed[e.topic]++
	}
}

func (t *tally) fields() log.Fields {
	fields := log.Fields{"scanned": t.scanned}
	for _, v := range []verdict{verdictReplay, verdictInvalid, verdictFiltered, verdictBroken} {
		fields[string(v)] = t.verdicts[v]
	}
	for topic, n := range t.replayed {
		fields["to:"+topic] = n
	}
	return fields
}

// dlqSource читает записи DLQ, существующие на момент начала чтения.
// fn возвращает false, чтобы остановить чтение.
type dlqSource interface {
	Scan(ctx context.Context, topic string, fn func(*sarama.ConsumerMessage) bool) error
	Close() error
}

type replaySink interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// offsetReader — часть sarama.Client, нужная для определения границ партиций.
type offsetReader interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, at int64) (int64, error)
}

// partitionStream — часть sarama.PartitionConsumer.
type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// kafkaSource читает каждую партицию DLQ от старейшего смещения до
// high-water mark, зафиксированного перед чтением.
type kafkaSource struct {
	offsets offsetReader
	open    func(topic string, partition int32, offset int64) (partitionStream, error)
	idle    time.Duration
	closers []func() error
}

func (s *kafkaSource) Scan(ctx context.Context, topic string, fn func(*sarama.ConsumerMessage) bool) error {
	partitions, err := s.offsets.Partitions(topic)
	if err != nil {
		return fmt.Errorf("list partitions of %s: %w", topic, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		more, err := s.scanPartition(ctx, topic, partition, fn)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (s *kafkaSource) scanPartition(ctx context.Context, topic string, partition int32, fn func(*sarama.ConsumerMessage) bool) (bool, error) {
	from, err := s.offsets.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return false, fmt.Errorf("oldest offset of %s/%d: %w", topic, partition, err)
	}
	until, err := s.offsets.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return false, fmt.Errorf("newest offset of %s/%d: %w", topic, partition, err)
	}
	if until <= from {
		return true, nil
	}

	pc, err := s.open(topic, partition, from)
	if err != nil {
		return false, fmt.Errorf("consume %s/%d: %w", topic, partition, err)
	}
	defer func() { _ = pc.Close() }()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case cerr := <-pc.Errors():
			if cerr != nil {
				return false, fmt.Errorf("read %s/%d: %w", topic, partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok {
				return true, nil
			}
			if !fn(msg) {
				return false, nil
			}
			if msg.Offset+1 >= until {
				return true, nil
			}
		case <-time.After(s.idle):
			log.WithFields(log.Fields{"topic": topic, "partition": partition}).Warn("partition idle before high-water mark")
			return true, nil
		}
	}
}

func (s *kafkaSource) Close() error {
	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openKafka подключается к брокерам; sink равен nil в режиме dry-run.
var openKafka = func(opts options) (dlqSource, replaySink, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(opts.brokers, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect kafka: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create dlq consumer: %w", err)
	}
	src := &kafkaSource{
		offsets: client,
		open: func(topic string, partition int32, offset int64) (partitionStream, error) {
			return consumer.ConsumePartition(topic, partition, offset)
		},
		idle:    opts.idleTimeout,
		closers: []func() error{consumer.Close, client.Close},
	}
	if !opts.execute {
		return src, nil, nil
	}

	pcfg := sarama.NewConfig()
	pcfg.Producer.RequiredAcks = sarama.WaitForAll
	pcfg.Producer.Return.Successes = true
	pcfg.Producer.Idempotent = true
	pcfg.Net.MaxOpenRequests = 1
	producer, err := sarama.NewSyncProducer(opts.brokers, pcfg)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("create replay producer: %w", err)
	}
	return src, producer, nil
}

// reprocess проходит по DLQ и переигрывает подходящие события.
func reprocess(ctx context.Context, opts options, src dlqSource, sink replaySink) (*tally, error) {
	if opts.execute && sink == nil {
		return nil, fmt.Errorf("execute mode requires a producer")
	}

	t := newTally()
	var sendErr error
	err := src.Scan(ctx, opts.dlqTopic, func(msg *sarama.ConsumerMessage) bool {
		e := classify(msg.Value, opts)
		logger := log.WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"topic":     e.topic,
			"verdict":   e.verdict,
		})

		if e.verdict != verdictReplay {
			t.add(e)
			logger.WithField("reason", e.reason).Info("dlq entry skipped")
			return t.scanned < opts.limit
		}

		if opts.execute {
			if err := publish(sink, msg, e); err != nil {
				sendErr = err
				return false
			}
			logger.WithField("retries", e.retries).Info("dlq entry replayed")
		} else {
			logger.WithField("key", e.key).Info("dlq entry would be replayed")
		}
		t.add(e)
		return t.scanned < opts.limit
	})
	if sendErr != nil {
		return t, fmt.Errorf("replay to %s: %w", opts.dlqTopic, sendErr)
	}
	return t, err
}

// publish отправляет событие без заголовков retry: consumer начнёт отсчёт попыток заново.
func publish(sink replaySink, from *sarama.ConsumerMessage, e entry) error {
	msg := &sarama.ProducerMessage{
		Topic: e.topic,
		Value: sarama.ByteEncoder(e.value),
		Headers: []sarama.RecordHeader{{
			Key:   []byte(headerReplayedFrom),
			Value: []byte(fmt.Sprintf("%s/%d/%d", from.Topic, from.Partition, from.Offset)),
		}},
	}
	if e.key != "" {
		msg.Key = sarama.StringEncoder(e.key)
	}
	_, _, err := sink.SendMessage(msg)
	return err
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(os.Args[1:], time.Now())
	if err != nil {
		fail("%v", err)
	}
	if err := run(context.Background(), opts); err != nil {
		fail("dlq reprocess failed: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	src, sink, err := openKafka(opts)
	if err != nil {
		return err
	}
	defer func() {
		if sink != nil {
			_ = sink.Close()
		}
		_ = src.Close()
	}()

	t, err := reprocess(ctx, opts, src, sink)
	mode := "dry-run"
	if opts.execute {
		mode = "execute"
	}
	if t != nil {
		log.WithFields(t.fields()).WithField("mode", mode).Info("dlq reprocess finished")
	}
	return err
}

func parseOptions(args []string, now time.Time) (options, error) {
	var (
		opts    options
		brokers string
		since   time.Duration
	)
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (fallback: STOREFRONT_KAFKA_BROKERS)")
	fs.StringVar(&opts.dlqTopic, "dlq-topic", kafka.TopicDeadLetterQueue, "dead letter topic to read")
	fs.StringVar(&opts.targetTopic, "target-topic", "", "send every event here instead of its original topic")
	fs.StringVar(&opts.onlyTopic, "only-topic", "", "replay only events that failed on this topic")
	fs.DurationVar(&since, "since", 0, "replay only entries that failed within this window (0: all)")
	fs.IntVar(&opts.limit, "limit", defaultLimit, "max number of dlq entries to scan")
	fs.BoolVar(&opts.execute, "execute", false, "publish events; without it only report what would be replayed")
	fs.DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this idle period")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(brokers) == "" {
		brokers = os.Getenv("STOREFRONT_KAFKA_BROKERS")
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			opts.brokers = append(opts.brokers, b)
		}
	}
	opts.dlqTopic = strings.TrimSpace(opts.dlqTopic)
	opts.targetTopic = strings.TrimSpace(opts.targetTopic)
	opts.onlyTopic = strings.TrimSpace(opts.onlyTopic)

	switch {
	case len(opts.brokers) == 0:
		return options{}, fmt.Errorf("kafka brokers are required (-brokers or STOREFRONT_KAFKA_BROKERS)")
	case opts.dlqTopic == "":
		return options{}, fmt.Errorf("dlq-topic is required")
	case opts.limit <= 0:
		return options{}, fmt.Errorf("limit must be > 0")
	case opts.idleTimeout <= 0:
		return options{}, fmt.Errorf("idle-timeout must be > 0")
	case since < 0:
		return options{}, fmt.Errorf("since must not be negative")
	}
	if since > 0 {
		opts.failedAfter = now.Add(-since)
	}
	return opts, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
