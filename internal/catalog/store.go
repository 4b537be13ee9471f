package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
)

// StoreIndex is the products GSI keyed by store_id.
const StoreIndex = "store_id-index"

// DynamoStore reads and writes stores and products in DynamoDB.
type DynamoStore struct {
	client        aws.DynamoDBAPI
	storesTable   string
	productsTable string
	nowFunc       func() time.Time
}

// NewDynamoStore returns a catalog store over the given tables.
func NewDynamoStore(client aws.DynamoDBAPI, storesTable, productsTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		storesTable:   storesTable,
		productsTable: productsTable,
		nowFunc:       time.Now,
	}
}

// GetStore returns (nil, nil) when the store does not exist.
func (s *DynamoStore) GetStore(ctx context.Context, storeID int64) (*Store, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.storesTable,
		Key:       map[string]types.AttributeValue{"store_id": numberAV(storeID)},
	})
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var st Store
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return nil, fmt.Errorf("unmarshal store: %w", err)
	}
	return &st, nil
}

// PutStore creates or replaces a store.
func (s *DynamoStore) PutStore(ctx context.Context, st Store) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.nowFunc().UTC()
	}
	item, err := attributevalue.MarshalMap(st)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.storesTable, Item: item}); err != nil {
		return fmt.Errorf("put store: %w", err)
	}
	return nil
}

// GetProduct returns (nil, nil) when the product does not exist. Callers check StoreID.
func (s *DynamoStore) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.productsTable,
		Key:       map[string]types.AttributeValue{"product_id": numberAV(productID)},
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// PutProduct creates or replaces a product.
func (s *DynamoStore) PutProduct(ctx context.Context, p Product) error {
	now := s.nowFunc().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.productsTable, Item: item}); err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// ListActiveProducts returns up to limit active products of a store ordered by id.
// A limit <= 0 returns all of them.
func (s *DynamoStore) ListActiveProducts(ctx context.Context, storeID int64, limit int) ([]Product, error) {
	input := &dyn.QueryInput{
		TableName:                 &s.productsTable,
		IndexName:                 awsString(StoreIndex),
		KeyConditionExpression:    awsString("store_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":sid": numberAV(storeID)},
	}

	var products []Product
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query products: %w", err)
		}
		for _, item := range out.Items {
			var p Product
			if err := attributevalue.UnmarshalMap(item, &p); err != nil {
				return nil, fmt.Errorf("unmarshal product: %w", err)
			}
			if p.IsActive {
				products = append(products, p)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func numberAV(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func awsString(s string) *string { return &s }
