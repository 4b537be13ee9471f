package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
)

// Processor drains inbound WhatsApp jobs enqueued by the API.
type Processor struct {
	jobs   orderflow.Processor
	logger *zap.Logger
}

// NewProcessor wraps the orchestrator for SQS delivery.
func NewProcessor(jobs orderflow.Processor, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{jobs: jobs, logger: logger}
}

// Handle processes a batch. Records that could not be claimed are reported back so
// only they are redelivered; malformed bodies are dropped since a retry cannot fix them.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("worker error", zap.String("sqs_message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var job orderflow.Job
	if err := json.Unmarshal([]byte(rec.Body), &job); err != nil {
		p.logger.Warn("dropping malformed job", zap.String("sqs_message_id", rec.MessageId), zap.Error(err))
		return nil
	}

	outcome, err := p.jobs.Process(ctx, job)
	if err != nil {
		return err
	}
	p.logger.Info("job processed",
		zap.String("message_id", job.Message.ID),
		zap.Int64("store_id", job.StoreID),
		zap.String("outcome", string(outcome)),
	)
	return nil
}
