package customers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
)

// DynamoStore keeps customers in DynamoDB. Uniqueness of (store_id, phone) is
// enforced by a guard item written in the same transaction as the customer.
type DynamoStore struct {
	client         aws.DynamoDBAPI
	customersTable string
	phonesTable    string
	nowFunc        func() time.Time
	newID          func() string
}

// NewDynamoStore returns a customer store over the customers and phone-guard tables.
func NewDynamoStore(client aws.DynamoDBAPI, customersTable, phonesTable string) *DynamoStore {
	return &DynamoStore{
		client:         client,
		customersTable: customersTable,
		phonesTable:    phonesTable,
		nowFunc:        time.Now,
		newID:          uuid.NewString,
	}
}

// PhoneKey is the guard key for a phone number within a store.
func PhoneKey(storeID int64, phone string) string {
	return strconv.FormatInt(storeID, 10) + "#" + phone
}

// GetOrCreate returns the customer for (storeID, phone), creating it on first contact.
// created reports whether this call inserted the row. A concurrent insert for the
// same phone loses the guard condition and is answered with the winner's row.
func (s *DynamoStore) GetOrCreate(ctx context.Context, storeID int64, phone, name string) (*Customer, bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, false, errors.New("phone is required")
	}

	existing, err := s.GetByPhone(ctx, storeID, phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if name == "" {
		name = DefaultName(phone)
	}
	c := Customer{
		ID:        s.newID(),
		StoreID:   storeID,
		Phone:     phone,
		Name:      name,
		CreatedAt: s.nowFunc().UTC(),
	}
	custMap, err := attributevalue.MarshalMap(c)
	if err != nil {
		return nil, false, fmt.Errorf("marshal customer: %w", err)
	}
	guardMap, err := attributevalue.MarshalMap(phoneGuard{
		PhoneKey:   PhoneKey(storeID, phone),
		CustomerID: c.ID,
		StoreID:    storeID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal phone guard: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.phonesTable,
					Item:                guardMap,
					ConditionExpression: awsString("attribute_not_exists(phone_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.customersTable,
					Item:                custMap,
					ConditionExpression: awsString("attribute_not_exists(customer_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return nil, false, fmt.Errorf("transact write customer: %w", err)
		}
		// lost the race: read the winner
		winner, lookupErr := s.GetByPhone(ctx, storeID, phone)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if winner == nil {
			return nil, false, fmt.Errorf("customer insert canceled but no row found: %w", err)
		}
		return winner, false, nil
	}
	return &c, true, nil
}

// GetByPhone returns (nil, nil) when no customer has this phone in the store.
func (s *DynamoStore) GetByPhone(ctx context.Context, storeID int64, phone string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.phonesTable,
		Key: map[string]types.AttributeValue{
			"phone_key": &types.AttributeValueMemberS{Value: PhoneKey(storeID, phone)},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get phone guard: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var g phoneGuard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, fmt.Errorf("unmarshal phone guard: %w", err)
	}
	c, err := s.Get(ctx, g.CustomerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("phone guard %s points to missing customer %s", g.PhoneKey, g.CustomerID)
	}
	return c, nil
}

// Get fetches a customer by id. Returns (nil, nil) if not found.
func (s *DynamoStore) Get(ctx context.Context, customerID string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.customersTable,
		Key: map[string]types.AttributeValue{
			"customer_id": &types.AttributeValueMemberS{Value: customerID},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Customer
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
