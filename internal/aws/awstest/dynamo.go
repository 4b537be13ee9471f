// Package awstest provides in-memory fakes of the AWS clients used by the service.
// The DynamoDB fake understands the small expression subset the stores emit:
// attribute_(not_)exists, equality conditions joined by AND, SET updates and
// single-attribute key conditions on tables and indexes.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type table struct {
	hashKey string
	indexes map[string]string
	items   map[string]map[string]types.AttributeValue
}

// FakeDynamo is an in-memory DynamoDB. Tables must be declared with CreateTable.
type FakeDynamo struct {
	mu     sync.Mutex
	tables map[string]*table
	errs   map[string]error
	calls  map[string]int
	// eventual counts GetItem calls per table that did not ask for a consistent read
	eventual map[string]int
}

// NewFakeDynamo returns an empty fake.
func NewFakeDynamo() *FakeDynamo {
	return &FakeDynamo{
		tables: map[string]*table{},
		errs:     map[string]error{},
		calls:    map[string]int{},
		eventual: map[string]int{},
	}
}

// CreateTable declares a table keyed by a single hash key attribute.
func (f *FakeDynamo) CreateTable(name, hashKey string) *FakeDynamo {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{
		hashKey: hashKey,
		indexes: map[string]string{},
		items:   map[string]map[string]types.AttributeValue{},
	}
	return f
}

// CreateIndex declares a global secondary index on attr.
func (f *FakeDynamo) CreateIndex(tableName, indexName, attr string) *FakeDynamo {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[tableName].indexes[indexName] = attr
	return f
}

// FailOn makes every call to op ("PutItem", "Query", ...) return err. A nil err clears it.
func (f *FakeDynamo) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Calls returns how many times op was invoked.
func (f *FakeDynamo) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// EventualReads returns how many GetItem calls on the table were not consistent reads.
func (f *FakeDynamo) EventualReads(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eventual[tableName]
}

// Seed stores item as-is.
func (f *FakeDynamo) Seed(tableName string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[tableName]
	t.items[keyString(item[t.hashKey])] = item
}

// Item returns the stored item whose hash key renders as key, or nil.
func (f *FakeDynamo) Item(tableName, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[tableName].items[key]
}

// Items returns every item of the table ordered by hash key.
func (f *FakeDynamo) Items(tableName string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[tableName]
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it)
	}
	sortItems(out, t.hashKey)
	return out
}

// Len returns the number of items in the table.
func (f *FakeDynamo) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[tableName].items)
}

func (f *FakeDynamo) enter(op string) error {
	f.calls[op]++
	return f.errs[op]
}

func (f *FakeDynamo) table(name *string) (*table, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := f.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: name}
	}
	return t, nil
}

func (f *FakeDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, t.items[k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: awsString("The conditional request failed")}
	}
	t.items[k] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.ConsistentRead == nil || !*params.ConsistentRead {
		f.eventual[*params.TableName]++
	}
	k, err := t.key(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *FakeDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	u := &types.Update{
		TableName:                 params.TableName,
		Key:                       params.Key,
		UpdateExpression:          params.UpdateExpression,
		ConditionExpression:       params.ConditionExpression,
		ExpressionAttributeNames:  params.ExpressionAttributeNames,
		ExpressionAttributeValues: params.ExpressionAttributeValues,
	}
	ok, err := t.checkUpdate(u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: awsString("The conditional request failed")}
	}
	item, err := t.applyUpdate(u)
	if err != nil {
		return nil, err
	}
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *FakeDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.KeyConditionExpression == nil {
		return nil, errors.New("missing key condition")
	}
	attr, want, err := parseEquality(*params.KeyConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if params.IndexName != nil {
		indexed, ok := t.indexes[*params.IndexName]
		if !ok {
			return nil, fmt.Errorf("unknown index %s", *params.IndexName)
		}
		if indexed != attr {
			return nil, fmt.Errorf("index %s is keyed by %s, not %s", *params.IndexName, indexed, attr)
		}
	} else if attr != t.hashKey {
		return nil, fmt.Errorf("query key %s is not the hash key", attr)
	}

	var out []map[string]types.AttributeValue
	for _, it := range t.items {
		if equalAV(it[attr], want) {
			out = append(out, copyItem(it))
		}
	}
	sortItems(out, t.hashKey)
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if params.Limit != nil && int(*params.Limit) < len(out) {
		out = out[:*params.Limit]
	}
	return &dyn.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

func (f *FakeDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false
	for i, it := range params.TransactItems {
		ok, err := f.checkTransactItem(it)
		if err != nil {
			return nil, err
		}
		if ok {
			reasons[i] = types.CancellationReason{Code: awsString("None")}
			continue
		}
		canceled = true
		reasons[i] = types.CancellationReason{Code: awsString("ConditionalCheckFailed")}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             awsString("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			t, _ := f.table(it.Put.TableName)
			k, _ := t.key(it.Put.Item)
			t.items[k] = copyItem(it.Put.Item)
		case it.Update != nil:
			t, _ := f.table(it.Update.TableName)
			if _, err := t.applyUpdate(it.Update); err != nil {
				return nil, err
			}
		case it.Delete != nil:
			t, _ := f.table(it.Delete.TableName)
			k, _ := t.key(it.Delete.Key)
			delete(t.items, k)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *FakeDynamo) checkTransactItem(it types.TransactWriteItem) (bool, error) {
	switch {
	case it.Put != nil:
		t, err := f.table(it.Put.TableName)
		if err != nil {
			return false, err
		}
		k, err := t.key(it.Put.Item)
		if err != nil {
			return false, err
		}
		return evalCondition(it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, t.items[k])
	case it.Update != nil:
		t, err := f.table(it.Update.TableName)
		if err != nil {
			return false, err
		}
		return t.checkUpdate(it.Update)
	case it.Delete != nil:
		t, err := f.table(it.Delete.TableName)
		if err != nil {
			return false, err
		}
		k, err := t.key(it.Delete.Key)
		if err != nil {
			return false, err
		}
		return evalCondition(it.Delete.ConditionExpression, it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues, t.items[k])
	case it.ConditionCheck != nil:
		t, err := f.table(it.ConditionCheck.TableName)
		if err != nil {
			return false, err
		}
		k, err := t.key(it.ConditionCheck.Key)
		if err != nil {
			return false, err
		}
		return evalCondition(it.ConditionCheck.ConditionExpression, it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues, t.items[k])
	}
	return false, errors.New("empty transact item")
}

func (t *table) key(item map[string]types.AttributeValue) (string, error) {
	v, ok := item[t.hashKey]
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.hashKey)
	}
	return keyString(v), nil
}

func (t *table) checkUpdate(u *types.Update) (bool, error) {
	k, err := t.key(u.Key)
	if err != nil {
		return false, err
	}
	return evalCondition(u.ConditionExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues, t.items[k])
}

func (t *table) applyUpdate(u *types.Update) (map[string]types.AttributeValue, error) {
	k, err := t.key(u.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		item = copyItem(u.Key)
	}
	if u.UpdateExpression == nil {
		return nil, errors.New("missing update expression")
	}
	expr := strings.TrimSpace(*u.UpdateExpression)
	if !strings.HasPrefix(strings.ToUpper(expr), "SET ") {
		return nil, fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, assign := range strings.Split(expr[4:], ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad assignment %q", assign)
		}
		name := resolveName(strings.TrimSpace(parts[0]), u.ExpressionAttributeNames)
		placeholder := strings.TrimSpace(parts[1])
		v, ok := u.ExpressionAttributeValues[placeholder]
		if !ok {
			return nil, fmt.Errorf("missing value for %s", placeholder)
		}
		item[name] = v
	}
	t.items[k] = item
	return item, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, existing map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, term := range splitAnd(*expr) {
		switch {
		case strings.HasPrefix(term, "attribute_not_exists(") && strings.HasSuffix(term, ")"):
			name := resolveName(term[len("attribute_not_exists("):len(term)-1], names)
			if _, ok := existing[name]; ok {
				return false, nil
			}
		case strings.HasPrefix(term, "attribute_exists(") && strings.HasSuffix(term, ")"):
			name := resolveName(term[len("attribute_exists("):len(term)-1], names)
			if _, ok := existing[name]; !ok {
				return false, nil
			}
		default:
			attr, want, err := parseEquality(term, names, values)
			if err != nil {
				return false, err
			}
			if !equalAV(existing[attr], want) {
				return false, nil
			}
		}
	}
	return true, nil
}

func splitAnd(expr string) []string {
	var out []string
	for _, part := range strings.Split(strings.ReplaceAll(expr, " and ", " AND "), " AND ") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseEquality(term string, names map[string]string, values map[string]types.AttributeValue) (string, types.AttributeValue, error) {
	parts := strings.SplitN(term, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("unsupported expression %q", term)
	}
	attr := resolveName(strings.TrimSpace(parts[0]), names)
	placeholder := strings.TrimSpace(parts[1])
	v, ok := values[placeholder]
	if !ok {
		return "", nil, fmt.Errorf("missing value for %s", placeholder)
	}
	return attr, v, nil
}

func resolveName(name string, names map[string]string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

func equalAV(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		x, errX := strconv.ParseFloat(av.Value, 64)
		y, errY := strconv.ParseFloat(bv.Value, 64)
		if errX != nil || errY != nil {
			return av.Value == bv.Value
		}
		return x == y
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

func keyString(v types.AttributeValue) string {
	switch av := v.(type) {
	case *types.AttributeValueMemberS:
		return av.Value
	case *types.AttributeValueMemberN:
		return av.Value
	}
	return fmt.Sprintf("%v", v)
}

func sortItems(items []map[string]types.AttributeValue, key string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i][key], items[j][key]
		an, aok := a.(*types.AttributeValueMemberN)
		bn, bok := b.(*types.AttributeValueMemberN)
		if aok && bok {
			x, _ := strconv.ParseFloat(an.Value, 64)
			y, _ := strconv.ParseFloat(bn.Value, 64)
			return x < y
		}
		return keyString(a) < keyString(b)
	})
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func awsString(s string) *string { return &s }
