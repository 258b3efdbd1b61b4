package producer

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pickme-go/stream-join/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockProducer(t *testing.T) (*mocks.SyncProducer, Producer) {
	config := NewConfig()
	config.apply()

	mock := mocks.NewSyncProducer(t, config.Config)
	return mock, NewProducerFrom(config, mock)
}

func TestProducer_Produce(t *testing.T) {
	mock, p := newMockProducer(t)
	mock.ExpectSendMessageAndSucceed()

	_, _, err := p.Produce(context.Background(), &Message{
		Topic: `joined`,
		Key:   []byte(`100`),
		Value: []byte(`100`),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_ProduceFails(t *testing.T) {
	mock, p := newMockProducer(t)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	_, _, err := p.Produce(context.Background(), &Message{Topic: `joined`, Value: []byte(`x`)})
	assert.Error(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_ProduceBatch(t *testing.T) {
	mock, p := newMockProducer(t)
	mock.ExpectSendMessageAndSucceed()
	mock.ExpectSendMessageAndSucceed()

	err := p.ProduceBatch(context.Background(), []*Message{
		{Topic: `joined`, Value: []byte(`1`)},
		{Topic: `joined`, Value: []byte(`2`)},
	})
	require.NoError(t, err)

	assert.NoError(t, p.ProduceBatch(context.Background(), nil))
	require.NoError(t, p.Close())
}

func rowsOf(items ...string) func(func(string, error) bool) {
	return func(yield func(string, error) bool) {
		for _, i := range items {
			if !yield(i, nil) {
				return
			}
		}
	}
}

func TestSink_Write(t *testing.T) {
	mock, p := newMockProducer(t)
	for i := 0; i < 3; i++ {
		mock.ExpectSendMessageAndSucceed()
	}

	n, err := Sink[string]{
		Topic:     `joined`,
		Encoder:   encoding.StringEncoder{},
		Key:       func(s string) ([]byte, error) { return []byte(s), nil },
		BatchSize: 2,
	}.Write(context.Background(), p, rowsOf(`a`, `b`, `c`))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, p.Close())
}

func TestSink_WriteStopsOnError(t *testing.T) {
	mock, p := newMockProducer(t)
	mock.ExpectSendMessageAndSucceed()

	boom := errors.New(`boom`)
	rows := func(yield func(string, error) bool) {
		if !yield(`a`, nil) {
			return
		}
		yield(``, boom)
	}

	n, err := Sink[string]{Topic: `joined`, Encoder: encoding.StringEncoder{}, BatchSize: 10}.
		Write(context.Background(), p, rows)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	require.NoError(t, p.Close())
}

func TestRequiredAcks_String(t *testing.T) {
	assert.Equal(t, `WaitForAll`, WaitForAll.String())
	assert.Equal(t, `WaitForLeader`, WaitForLeader.String())
	assert.Equal(t, `NoResponse`, NoResponse.String())
}
