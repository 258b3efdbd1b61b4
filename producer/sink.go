package producer

import (
	"context"
	"fmt"
	"iter"

	"github.com/pickme-go/errors"
	"github.com/pickme-go/stream-join/encoding"
)

// Sink publishes join outputs to a topic in batches.
type Sink[Y any] struct {
	Topic     string
	Key       func(Y) ([]byte, error)
	Encoder   encoding.Encoder
	BatchSize int
}

// Write drains rows into p and returns the number of published messages. A
// failing row or encoder stops the write; buffered messages are published
// before the error is returned.
func (s Sink[Y]) Write(ctx context.Context, p Producer, rows iter.Seq2[Y, error]) (int, error) {
	size := s.BatchSize
	if size < 1 {
		size = 1
	}

	var written int
	batch := make([]*Message, 0, size)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.ProduceBatch(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for y, err := range rows {
		if err != nil {
			if ferr := flush(); ferr != nil {
				return written, ferr
			}
			return written, err
		}

		msg, err := s.message(y)
		if err != nil {
			if ferr := flush(); ferr != nil {
				return written, ferr
			}
			return written, err
		}

		batch = append(batch, msg)
		if len(batch) >= size {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}

	return written, flush()
}

func (s Sink[Y]) message(y Y) (*Message, error) {
	val, err := s.Encoder.Encode(y)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot encode output for [%s]`, s.Topic))
	}

	msg := &Message{
		Topic: s.Topic,
		Value: val,
	}

	if s.Key != nil {
		key, err := s.Key(y)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot derive key for [%s]`, s.Topic))
		}
		msg.Key = key
	}

	return msg, nil
}
