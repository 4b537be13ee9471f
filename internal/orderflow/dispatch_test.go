package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

type funcProcessor func(ctx context.Context, job Job) (Outcome, error)

func (f funcProcessor) Process(ctx context.Context, job Job) (Outcome, error) { return f(ctx, job) }

func TestQueueDispatcher(t *testing.T) {
	sqs := &awstest.FakeSQS{}
	d := NewQueueDispatcher(aws.NewPublisher(sqs, "https://sqs.local/inbound"), nil)

	job := Job{StoreID: 3, Message: whatsapp.InboundMessage{ID: "wamid.1", From: "628123", Text: "menu"}}
	require.NoError(t, d.Dispatch(context.Background(), job))

	bodies := sqs.Bodies()
	require.Len(t, bodies, 1)
	var got Job
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &got))
	assert.Equal(t, job.StoreID, got.StoreID)
	assert.Equal(t, job.Message, got.Message)

	attrs := sqs.Sent[0].MessageAttributes
	assert.Equal(t, "wamid.1", *attrs["message_id"].StringValue)
	assert.Equal(t, "3", *attrs["store_id"].StringValue)

	sqs.Err = errors.New("queue gone")
	assert.Error(t, d.Dispatch(context.Background(), job))
}

func TestLocalDispatcher_RunsJobs(t *testing.T) {
	var done int32
	var seen sync.Map
	proc := funcProcessor(func(ctx context.Context, job Job) (Outcome, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		seen.Store(job.Message.ID, true)
		atomic.AddInt32(&done, 1)
		return OutcomeResponded, nil
	})

	d := NewLocalDispatcher(proc, 4, 16, time.Second, nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, d.Dispatch(context.Background(), Job{Message: whatsapp.InboundMessage{ID: id}}))
	}
	d.Close()

	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, ok := seen.Load(id)
		assert.True(t, ok, id)
	}

	assert.ErrorIs(t, d.Dispatch(context.Background(), Job{}), ErrClosed)
	d.Close()
}

func TestLocalDispatcher_Backpressure(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var done int32
	proc := funcProcessor(func(ctx context.Context, job Job) (Outcome, error) {
		started <- struct{}{}
		<-release
		atomic.AddInt32(&done, 1)
		return OutcomeResponded, nil
	})

	d := NewLocalDispatcher(proc, 1, 1, 0, nil)
	require.NoError(t, d.Dispatch(context.Background(), Job{Message: whatsapp.InboundMessage{ID: "1"}}))
	<-started

	require.NoError(t, d.Dispatch(context.Background(), Job{Message: whatsapp.InboundMessage{ID: "2"}}))
	assert.ErrorIs(t, d.Dispatch(context.Background(), Job{Message: whatsapp.InboundMessage{ID: "3"}}), ErrQueueFull)

	close(release)
	<-started
	d.Close()
	assert.Equal(t, int32(2), atomic.LoadInt32(&done))
}

func TestLocalDispatcher_SurvivesPanicsAndErrors(t *testing.T) {
	var done int32
	proc := funcProcessor(func(ctx context.Context, job Job) (Outcome, error) {
		defer atomic.AddInt32(&done, 1)
		switch job.Message.ID {
		case "panic":
			panic("boom")
		case "error":
			return OutcomeFailed, errors.New("claim failed")
		}
		return OutcomeResponded, nil
	})

	d := NewLocalDispatcher(proc, 1, 4, time.Second, nil)
	for _, id := range []string{"panic", "error", "ok"} {
		require.NoError(t, d.Dispatch(context.Background(), Job{Message: whatsapp.InboundMessage{ID: id}}))
	}
	d.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&done))
}

func TestStoreRouter(t *testing.T) {
	r := NewStoreRouter(map[string]int64{"PNID-1": 7}, 1)
	id, ok := r.Resolve("PNID-1")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = r.Resolve("unknown")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok = NewStoreRouter(nil, 0).Resolve("unknown")
	assert.False(t, ok)
}
