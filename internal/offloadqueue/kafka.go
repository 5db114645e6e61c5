package offloadqueue

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures a Kafka-backed Backend: a kafka.Writer per producer
// and a kafka.Reader per consumer group, addressed by a comma-separated
// broker list.
type KafkaConfig struct {
	Brokers      string
	Topic        string
	GroupID      string
	WriteTimeout time.Duration // bound on the producer-side deadline; Enqueue never blocks past this
}

// Kafka is a Backend over a Kafka topic: the hot path produces with a short
// per-call deadline and drops on timeout (never BLPOP-style blocking),
// preserving I6; the cold worker consumes via a reader, committing offsets
// per job to get FIFO-per-partition delivery.
type Kafka struct {
	writer       *kafka.Writer
	reader       *kafka.Reader
	writeTimeout time.Duration

	processedTotal uint64
	droppedTotal   uint64
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	brokers := strings.Split(strings.TrimSpace(cfg.Brokers), ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 500 * time.Millisecond
	}
	return &Kafka{writer: writer, reader: reader, writeTimeout: writeTimeout}, nil
}

// Enqueue never blocks past writeTimeout: a slow or unreachable broker drops
// the job rather than stalling the hot path.
func (k *Kafka) Enqueue(job Job) (dropped bool) {
	payload, err := json.Marshal(job)
	if err != nil {
		atomic.AddUint64(&k.droppedTotal, 1)
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.writeTimeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(job.ChunkID), Value: payload}); err != nil {
		atomic.AddUint64(&k.droppedTotal, 1)
		return true
	}
	return false
}

// DrainBatch fetches and commits up to n messages, non-blocking beyond a
// short per-fetch context deadline so an empty topic doesn't stall the cold
// worker's poll loop.
func (k *Kafka) DrainBatch(n int) []Job {
	if n <= 0 {
		return nil
	}
	out := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		msg, err := k.reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			break
		}
		var job Job
		if err := json.Unmarshal(msg.Value, &job); err == nil {
			out = append(out, job)
		}
		_ = k.reader.CommitMessages(context.Background(), msg)
	}
	if len(out) > 0 {
		atomic.AddUint64(&k.processedTotal, uint64(len(out)))
	}
	return out
}

// Stats reports only the counters Kafka itself doesn't track natively;
// CurrentSize/MaxSize are left at zero since partition lag isn't queried
// here (a production deployment would read it from the admin client).
func (k *Kafka) Stats() Stats {
	return Stats{
		ProcessedTotal: atomic.LoadUint64(&k.processedTotal),
		DroppedTotal:   atomic.LoadUint64(&k.droppedTotal),
	}
}

// Close releases the writer and reader connections.
func (k *Kafka) Close() error {
	werr := k.writer.Close()
	rerr := k.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
