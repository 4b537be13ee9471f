package messages

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
)

// CustomerIndex is the messages GSI keyed by customer_id.
const CustomerIndex = "customer_id-index"

// DynamoStore is the append-only message log in DynamoDB.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewDynamoStore returns a message log over tableName.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Append writes m. Missing id and timestamp are filled in. Rows are never overwritten.
func (s *DynamoStore) Append(ctx context.Context, m Message) (*Message, error) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.nowFunc().UTC()
	}
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(message_id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put message: %w", err)
	}
	return &m, nil
}

// ListByCustomer returns the latest limit messages of a customer, oldest first.
// A limit <= 0 returns the whole log.
func (s *DynamoStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Message, error) {
	input := &dyn.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 awsString(CustomerIndex),
		KeyConditionExpression:    awsString("customer_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":cid": &types.AttributeValueMemberS{Value: customerID}},
	}

	var out []Message
	for {
		page, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query messages: %w", err)
		}
		for _, item := range page.Items {
			var m Message
			if err := attributevalue.UnmarshalMap(item, &m); err != nil {
				return nil, fmt.Errorf("unmarshal message: %w", err)
			}
			out = append(out, m)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func awsString(s string) *string { return &s }
