package awstest

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// FakeSQS records every message sent to it.
type FakeSQS struct {
	mu   sync.Mutex
	Sent []*sqs.SendMessageInput
	Err  error
}

func (f *FakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Sent = append(f.Sent, params)
	return &sqs.SendMessageOutput{MessageId: awsString("msg-" + strconv.Itoa(len(f.Sent)))}, nil
}

// Bodies returns the bodies of all sent messages in order.
func (f *FakeSQS) Bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Sent))
	for _, in := range f.Sent {
		out = append(out, *in.MessageBody)
	}
	return out
}

// FakeCloudWatch records metric data.
type FakeCloudWatch struct {
	mu    sync.Mutex
	Datum []cwtypes.MetricDatum
	Err   error
}

func (f *FakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Datum = append(f.Datum, params.MetricData...)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Sum adds up the values recorded for a metric name.
func (f *FakeCloudWatch) Sum(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total float64
	for _, d := range f.Datum {
		if d.MetricName != nil && *d.MetricName == name && d.Value != nil {
			total += *d.Value
		}
	}
	return total
}
