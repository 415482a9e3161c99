package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/garment-search/internal/cfg"
	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// messageWriter — часть kafka.Writer, нужная продюсеру.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует отчёты прогонов пайплайна эмбеддингов. Ключ сообщения — имя партиции,
// значение — google.protobuf.Struct в бинарном protobuf.
type Producer struct {
	writer messageWriter
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) (*Producer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: kafka brokers and topic are required", e.ErrIncorrectEnvVariable))
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// PublishReport отправляет отчёт по одной партиции.
func (p *Producer) PublishReport(ctx context.Context, runID string, report domain.PartitionReport) error {
	value, err := ReportPayload(runID, report)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.Partition),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		err := conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// ReportPayload сериализует отчёт партиции.
func ReportPayload(runID string, report domain.PartitionReport) ([]byte, error) {
	event, err := structpb.NewStruct(map[string]any{
		"event":                  "embedding_partition_finished",
		"run_id":                 runID,
		"event_timestamp":        float64(time.Now().UnixNano()),
		"partition":              report.Partition,
		"considered":             report.Considered,
		"downloaded":             report.Downloaded,
		"skipped":                report.Skipped,
		"localized":              report.Localized,
		"localization_fallbacks": report.LocalizationFallbacks,
		"embedded":               report.Embedded,
		"failed":                 report.Failed,
		"persisted":              report.Persisted,
		"checkpoints":            report.Checkpoints,
		"duration_ms":            report.Duration.Milliseconds(),
		"error":                  report.Error,
	})
	if err != nil {
		return nil, err
	}

	return proto.Marshal(event)
}
