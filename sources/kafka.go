package sources

import (
	"context"
	"fmt"
	"iter"

	"github.com/Shopify/sarama"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/stream-join/encoding"
	saramaMetrics "github.com/rcrowley/go-metrics"
)

func init() {
	saramaMetrics.UseNilMetrics = true
}

// KafkaRange is the offset range [From, To) of one partition.
type KafkaRange struct {
	Topic     string
	Partition int32
	From      int64
	To        int64
}

func (r KafkaRange) String() string {
	return fmt.Sprintf(`%s-%d[%d:%d]`, r.Topic, r.Partition, r.From, r.To)
}

// Resolve replaces sarama.OffsetOldest and sarama.OffsetNewest with the
// partition offsets known to client.
func (r KafkaRange) Resolve(client sarama.Client) (KafkaRange, error) {
	if r.From == sarama.OffsetOldest || r.From == sarama.OffsetNewest {
		off, err := client.GetOffset(r.Topic, r.Partition, r.From)
		if err != nil {
			return r, errors.WithPrevious(err, fmt.Sprintf(`cannot resolve start offset of %s`, r))
		}
		r.From = off
	}

	if r.To == sarama.OffsetOldest || r.To == sarama.OffsetNewest {
		off, err := client.GetOffset(r.Topic, r.Partition, r.To)
		if err != nil {
			return r, errors.WithPrevious(err, fmt.Sprintf(`cannot resolve end offset of %s`, r))
		}
		r.To = off
	}

	return r, nil
}

// Decoder turns a message into an element.
type Decoder[T any] func(msg *sarama.ConsumerMessage) (T, error)

// RecordDecoder decodes message values with enc into records. The message key
// is stored under keyColumn when it is not empty. Values decoding to a non
// object are stored under `value`.
func RecordDecoder(keyEnc, valEnc encoding.Encoder, keyColumn string) Decoder[Record] {
	return func(msg *sarama.ConsumerMessage) (Record, error) {
		v, err := valEnc.Decode(msg.Value)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot decode value at offset %d`, msg.Offset))
		}

		rec, ok := v.(map[string]interface{})
		if !ok {
			rec = map[string]interface{}{`value`: v}
		}

		if keyColumn != `` {
			k, err := keyEnc.Decode(msg.Key)
			if err != nil {
				return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot decode key at offset %d`, msg.Offset))
			}
			rec[keyColumn] = k
		}

		return rec, nil
	}
}

// Kafka consumes r from consumer. The partition consumer is opened on the
// first pull and closed once the range is read, the consumer stops, or ctx
// is cancelled. Offsets of r must be absolute, see KafkaRange.Resolve.
func Kafka[T any](ctx context.Context, consumer sarama.Consumer, r KafkaRange, decode Decoder[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		if r.From < 0 || r.To < 0 {
			yield(zero, errors.New(fmt.Sprintf(`unresolved offsets in %s`, r)))
			return
		}

		if r.From >= r.To {
			return
		}

		pc, err := consumer.ConsumePartition(r.Topic, r.Partition, r.From)
		if err != nil {
			yield(zero, errors.WithPrevious(err, fmt.Sprintf(`cannot consume %s`, r)))
			return
		}
		defer pc.Close()

		for {
			select {
			case <-ctx.Done():
				yield(zero, ctx.Err())
				return

			case err, ok := <-pc.Errors():
				if !ok {
					return
				}
				yield(zero, errors.WithPrevious(err, fmt.Sprintf(`cannot consume %s`, r)))
				return

			case msg, ok := <-pc.Messages():
				if !ok {
					return
				}

				if msg.Offset >= r.To {
					return
				}

				t, err := decode(msg)
				if err != nil {
					yield(zero, err)
					return
				}

				if !yield(t, nil) {
					return
				}

				if msg.Offset >= r.To-1 {
					return
				}
			}
		}
	}
}
