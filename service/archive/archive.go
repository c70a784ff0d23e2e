package archive

import (
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"TeleProject/logger"
)

// Producer mirrors raw telemetry to a Kafka topic for downstream archival.
// Strictly fire-and-forget: the ingestion path never blocks on it and never
// fails because of it.
type Producer struct {
	ap    sarama.AsyncProducer
	topic string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("archive: brokers/topic missing")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // key = device id keeps per-device order
	cfg.Net.DialTimeout = 10 * time.Second

	ap, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "archive: new producer")
	}

	p := &Producer{ap: ap, topic: topic}
	go func() {
		for perr := range ap.Errors() {
			logger.Warnf("[archive] mirror failed topic=%s err=%v", perr.Msg.Topic, perr.Err)
		}
	}()
	return p, nil
}

// Mirror enqueues one raw telemetry payload keyed by device id.
func (p *Producer) Mirror(deviceID string, payload []byte) {
	p.ap.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(deviceID),
		Value: sarama.ByteEncoder(payload),
	}
}

func (p *Producer) Close() error {
	return p.ap.Close()
}
