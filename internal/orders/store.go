package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
)

var (
	// ErrStatusMismatch is returned when a conditional status transition finds another status.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateOrderNumber is returned when the order number is already taken in the store.
	ErrDuplicateOrderNumber = errors.New("order number already exists in store")
)

// Tables names the DynamoDB tables backing the order aggregate.
type Tables struct {
	Orders        string
	OrderNumbers  string
	StatusHistory string
}

// DynamoStore encapsulates operations on the orders tables.
type DynamoStore struct {
	client  aws.DynamoDBAPI
	tables  Tables
	nowFunc func() time.Time
}

// NewDynamoStore creates a new orders store.
func NewDynamoStore(client aws.DynamoDBAPI, tables Tables) *DynamoStore {
	return &DynamoStore{
		client:  client,
		tables:  tables,
		nowFunc: time.Now,
	}
}

// NumberKey is the guard key of an order number within a store.
func NumberKey(storeID int64, orderNumber string) string {
	return strconv.FormatInt(storeID, 10) + "#" + orderNumber
}

// Create atomically writes the order number guard, the order with its items and the
// initial status history row. Returns ErrDuplicateOrderNumber if the number is taken.
func (s *DynamoStore) Create(ctx context.Context, order Order, initial StatusChange) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	guardMap, err := attributevalue.MarshalMap(numberGuard{
		NumberKey:   NumberKey(order.StoreID, order.OrderNumber),
		OrderID:     order.ID,
		StoreID:     order.StoreID,
		OrderNumber: order.OrderNumber,
	})
	if err != nil {
		return fmt.Errorf("marshal order number guard: %w", err)
	}
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	historyMap, err := attributevalue.MarshalMap(initial)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.tables.OrderNumbers,
					Item:                guardMap,
					ConditionExpression: awsString("attribute_not_exists(number_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tables.Orders,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
			{
				Put: &types.Put{
					TableName: &s.tables.StatusHistory,
					Item:      historyMap,
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if len(tce.CancellationReasons) > 0 && reasonCode(tce.CancellationReasons[0]) == "ConditionalCheckFailed" {
				return ErrDuplicateOrderNumber
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *DynamoStore) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tables.Orders,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetByNumber resolves an order number within a store. Returns (nil, nil) if not found.
func (s *DynamoStore) GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tables.OrderNumbers,
		Key: map[string]types.AttributeValue{
			"number_key": &types.AttributeValueMemberS{Value: NumberKey(storeID, orderNumber)},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get order number: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var g numberGuard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, fmt.Errorf("unmarshal order number: %w", err)
	}
	return s.Get(ctx, g.OrderID)
}

// UpdateStatus conditionally moves the order from expected to change.ToStatus and
// appends change to the history in the same transaction.
// Returns ErrStatusMismatch if the order is not in expected.
func (s *DynamoStore) UpdateStatus(ctx context.Context, orderID, expected string, change StatusChange) error {
	now := s.nowFunc().UTC()
	if change.CreatedAt.IsZero() {
		change.CreatedAt = now
	}
	historyMap, err := attributevalue.MarshalMap(change)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: &s.tables.Orders,
					Key: map[string]types.AttributeValue{
						"order_id": &types.AttributeValueMemberS{Value: orderID},
					},
					UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
					ConditionExpression:      awsString("#s = :expected"),
					ExpressionAttributeNames: map[string]string{"#s": "status"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":new":      &types.AttributeValueMemberS{Value: change.ToStatus},
						":expected": &types.AttributeValueMemberS{Value: expected},
						":ua":       &types.AttributeValueMemberS{Value: change.CreatedAt.Format(time.RFC3339Nano)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: &s.tables.StatusHistory,
					Item:      historyMap,
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func reasonCode(r types.CancellationReason) string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
