package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

type stubJobs struct {
	seen []orderflow.Job
	fail map[string]bool
}

func (s *stubJobs) Process(ctx context.Context, job orderflow.Job) (orderflow.Outcome, error) {
	s.seen = append(s.seen, job)
	if s.fail[job.Message.ID] {
		return orderflow.OutcomeFailed, errors.New("claim failed")
	}
	return orderflow.OutcomeResponded, nil
}

func record(t *testing.T, id string, job orderflow.Job) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestWorkerProcess_Success(t *testing.T) {
	jobs := &stubJobs{}
	p := NewProcessor(jobs, nil)

	job := orderflow.Job{StoreID: 7, Message: whatsapp.InboundMessage{ID: "wamid.1", From: "628123", Text: "menu"}}
	resp, err := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{record(t, "sqs-1", job)}})
	if err != nil {
		t.Fatalf("unexpected worker error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.BatchItemFailures)
	}
	if len(jobs.seen) != 1 || jobs.seen[0].StoreID != 7 || jobs.seen[0].Message.Text != "menu" {
		t.Fatalf("job not passed through: %+v", jobs.seen)
	}
}

func TestWorkerProcess_PartialFailure(t *testing.T) {
	jobs := &stubJobs{fail: map[string]bool{"wamid.2": true}}
	p := NewProcessor(jobs, nil)

	ev := events.SQSEvent{Records: []events.SQSMessage{
		record(t, "sqs-1", orderflow.Job{StoreID: 1, Message: whatsapp.InboundMessage{ID: "wamid.1", From: "1"}}),
		record(t, "sqs-2", orderflow.Job{StoreID: 1, Message: whatsapp.InboundMessage{ID: "wamid.2", From: "1"}}),
		{MessageId: "sqs-3", Body: "not json"},
	}}
	resp, err := p.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected worker error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "sqs-2" {
		t.Fatalf("expected only sqs-2 to be retried, got %+v", resp.BatchItemFailures)
	}
	if len(jobs.seen) != 2 {
		t.Fatalf("malformed record should not reach the orchestrator, saw %d jobs", len(jobs.seen))
	}
}
