package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "test-member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) MarkOffset(_ string, _ int32, _ int64, _ string) {
}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(_ string, _ int32, _ int64, _ string) {
}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func newFakeClaim(offsets ...int64) *fakeClaim {
	c := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(offsets))}
	for _, offset := range offsets {
		c.messages <- &sarama.ConsumerMessage{
			Topic:     "test-topic",
			Partition: 0,
			Offset:    offset,
			Value:     []byte("{}"),
		}
	}
	close(c.messages)
	return c
}

func (c *fakeClaim) Topic() string                            { return "test-topic" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_MarksOnlySuccessfulMessages(t *testing.T) {
	var handled []int64
	h := &saramaHandler{
		logger: zap.NewNop(),
		handler: func(_ context.Context, msg *sarama.ConsumerMessage) error {
			handled = append(handled, msg.Offset)
			return nil
		},
	}

	session := &fakeSession{ctx: context.Background()}

	err := h.ConsumeClaim(session, newFakeClaim(0, 1, 2))
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2}, handled)
	assert.Equal(t, []int64{0, 1, 2}, session.marked)
}

func TestConsumeClaim_AbortsOnHandlerFailure(t *testing.T) {
	handlerErr := errors.New("storage unavailable")

	var handled []int64
	h := &saramaHandler{
		logger: zap.NewNop(),
		handler: func(_ context.Context, msg *sarama.ConsumerMessage) error {
			handled = append(handled, msg.Offset)
			if msg.Offset == 0 {
				return handlerErr
			}
			return nil
		},
	}

	session := &fakeSession{ctx: context.Background()}

	err := h.ConsumeClaim(session, newFakeClaim(0, 1))
	require.ErrorIs(t, err, handlerErr)

	// The failed offset stays uncommitted and later messages are not
	// touched, so the session resumes at the failure for redelivery.
	assert.Equal(t, []int64{0}, handled)
	assert.Empty(t, session.marked)
}

func TestConsumeClaim_RedeliveredMessageSucceeds(t *testing.T) {
	attempts := 0
	h := &saramaHandler{
		logger: zap.NewNop(),
		handler: func(_ context.Context, _ *sarama.ConsumerMessage) error {
			attempts++
			if attempts == 1 {
				return errors.New("transient failure")
			}
			return nil
		},
	}

	session := &fakeSession{ctx: context.Background()}

	err := h.ConsumeClaim(session, newFakeClaim(0))
	require.Error(t, err)
	assert.Empty(t, session.marked)

	// The broker redelivers from the last committed offset.
	err = h.ConsumeClaim(session, newFakeClaim(0))
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, session.marked)
}
