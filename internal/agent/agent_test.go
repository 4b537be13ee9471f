package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
)

// scriptedModel replies with the queued texts in order and records what it was sent.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	systems []string
	seen    [][]ChatMessage
}

func (m *scriptedModel) Complete(ctx context.Context, system string, messages []ChatMessage) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems = append(m.systems, system)
	m.seen = append(m.seen, append([]ChatMessage(nil), messages...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return &Completion{Text: "done", TotalTokens: 1}, nil
	}
	text := m.replies[0]
	m.replies = m.replies[1:]
	return &Completion{Text: text, TotalTokens: 7}, nil
}

type fixture struct {
	toolbox  *Toolbox
	customer *customers.Customer
	orders   *orders.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	fake := awstest.NewServiceDynamo()

	cat := catalog.NewDynamoStore(fake, "stores", "products")
	require.NoError(t, cat.PutStore(ctx, catalog.Store{ID: 1, Name: "Warung Kopi"}))
	require.NoError(t, cat.PutStore(ctx, catalog.Store{ID: 2, Name: "Toko Lain"}))
	require.NoError(t, cat.PutProduct(ctx, catalog.Product{ID: 1, StoreID: 1, Name: "Kopi Susu", Price: "15000", IsActive: true}))
	require.NoError(t, cat.PutProduct(ctx, catalog.Product{ID: 2, StoreID: 1, Name: "Roti Bakar", Price: "12500", IsActive: true}))
	require.NoError(t, cat.PutProduct(ctx, catalog.Product{ID: 9, StoreID: 2, Name: "Other", Price: "1", IsActive: true}))

	cust := customers.NewDynamoStore(fake, "customers", "customer_phones")
	c, _, err := cust.GetOrCreate(ctx, 1, "628111", "Budi")
	require.NoError(t, err)

	svc := orders.NewService(orders.NewDynamoStore(fake, orders.Tables{
		Orders: "orders", OrderNumbers: "order_numbers", StatusHistory: "order_status_history",
	}), cat, cust, nil, nil)

	return fixture{toolbox: NewToolbox(svc, cat), customer: c, orders: svc}
}

func TestExecute_PlainAnswer(t *testing.T) {
	model := &scriptedModel{replies: []string{"Halo! Ada yang bisa dibantu?"}}
	a := New(model, nil, nil, Options{}, nil)

	resp, err := a.Execute(context.Background(), "conv-1", "cust-1", 1, "hi")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Halo! Ada yang bisa dibantu?", resp.Message)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, 7, resp.Metadata["tokensUsed"])

	require.Len(t, model.systems, 1)
	assert.True(t, strings.HasPrefix(model.systems[0], DefaultSystemPrompt))
	assert.Contains(t, model.systems[0], "- create_order: Create a new order for the customer\n  Params: productIds")
	assert.Contains(t, model.systems[0], `TOOL_CALL: {"name": "tool_name", "input": {...}}`)

	hist, err := a.History("conv-1", "cust-1", 1)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "user", hist[0].Role)
	assert.Equal(t, "assistant", hist[1].Role)
}

func TestExecute_ToolLoop(t *testing.T) {
	f := newFixture(t)
	model := &scriptedModel{replies: []string{
		`Let me place that. TOOL_CALL: {"name": "create_order", "input": {"productIds": [1, "2"], "quantities": [2]}}`,
		"Your order is placed.",
	}}
	a := New(model, nil, f.toolbox, Options{}, nil)

	resp, err := a.Execute(context.Background(), "conv-2", f.customer.ID, 1, "2 kopi and a roti please")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Your order is placed.", resp.Message)

	hist, err := a.History("conv-2", f.customer.ID, 1)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	require.Len(t, hist[1].ToolCalls, 1)
	assert.Equal(t, ToolCreateOrder, hist[1].ToolCalls[0].Name)
	assert.NotEmpty(t, hist[1].ToolCalls[0].ID)

	obs := hist[2]
	assert.Equal(t, "user", obs.Role)
	assert.True(t, strings.HasPrefix(obs.Content, "Tool results: "))
	require.Len(t, obs.ToolResults, 1)
	require.True(t, obs.ToolResults[0].Success, obs.ToolResults[0].Error)

	o, ok := obs.ToolResults[0].Result.(*orders.Order)
	require.True(t, ok)
	assert.Equal(t, orders.ChannelAPI, o.Channel)
	assert.Equal(t, "42500", o.TotalAmount)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, 1, o.Items[1].Quantity)

	// the second round saw the observation
	require.Len(t, model.seen, 2)
	assert.Equal(t, obs.Content, model.seen[1][len(model.seen[1])-1].Content)
}

func TestExecute_StopsAtMaxIterations(t *testing.T) {
	f := newFixture(t)
	loop := `TOOL_CALL: {"name": "list_products", "input": {}}`
	model := &scriptedModel{replies: []string{loop, loop, loop, loop}}
	a := New(model, nil, f.toolbox, Options{MaxIterations: 3}, nil)

	resp, err := a.Execute(context.Background(), "conv-3", f.customer.ID, 1, "what do you sell?")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, loop, resp.Message)
	assert.Len(t, model.seen, 3)
	hist, err := a.History("conv-3", f.customer.ID, 1)
	require.NoError(t, err)
	assert.Len(t, hist, 7)
}

func TestExecute_ThinkingFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("rate limited")}
	a := New(model, nil, nil, Options{}, nil)

	resp, err := a.Execute(context.Background(), "conv-4", "cust", 1, "hello")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Agent thinking failed: rate limited", resp.Message)
	hist, err := a.History("conv-4", "cust", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestExecute_RequiresFields(t *testing.T) {
	a := New(&scriptedModel{}, nil, nil, Options{}, nil)
	_, err := a.Execute(context.Background(), "", "cust", 1, "hi")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = a.Execute(context.Background(), "c", "cust", 0, "hi")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = a.Execute(context.Background(), "c", "cust", 1, "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestExecute_HistoryWindow(t *testing.T) {
	model := &scriptedModel{}
	a := New(model, nil, nil, Options{HistorySize: 3}, nil)
	for i := 0; i < 4; i++ {
		_, err := a.Execute(context.Background(), "conv-5", "cust", 1, "msg")
		require.NoError(t, err)
	}
	hist, err := a.History("conv-5", "cust", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 8)
	assert.Len(t, model.seen[3], 3)

	require.NoError(t, a.Clear("conv-5", "cust", 1))
	hist, err = a.History("conv-5", "cust", 1)
	require.NoError(t, err)
	assert.Nil(t, hist)
}

func TestExecute_ConversationOwnedByAnotherStore(t *testing.T) {
	model := &scriptedModel{}
	a := New(model, nil, nil, Options{}, nil)
	ctx := context.Background()

	_, err := a.Execute(ctx, "conv-1", "cust-store1", 1, "alamat saya Jl. Rahasia 1")
	require.NoError(t, err)

	resp, err := a.Execute(ctx, "conv-1", "cust-store2", 2, "hi")
	assert.Nil(t, resp)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)
	require.Len(t, model.seen, 1, "model must not be called for a foreign conversation")

	_, err = a.Execute(ctx, "conv-1", "cust-store1", 2, "hi")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = a.History("conv-1", "cust-store2", 2)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.True(t, apperr.Is(a.Clear("conv-1", "cust-store2", 2), apperr.KindForbidden))

	hist, err := a.History("conv-1", "cust-store1", 1)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "alamat saya Jl. Rahasia 1", hist[0].Content)
}

func TestParseToolCalls(t *testing.T) {
	a := New(&scriptedModel{}, nil, nil, Options{}, nil)
	n := 0
	a.newID = func() string { n++; return "id-" + string(rune('0'+n)) }

	calls := a.parseToolCalls("first TOOL_CALL: {\"name\": \"get_product_info\", \"input\": {\"product_id\": 1}}\n" +
		"then TOOL_CALL: not json\n" +
		"and TOOL_CALL: {\"input\": {}}\n" +
		"last TOOL_CALL:{\"name\":\"list_products\"} trailing text")
	require.Len(t, calls, 2)
	assert.Equal(t, "get_product_info", calls[0].Name)
	assert.JSONEq(t, `{"product_id": 1}`, string(calls[0].Input))
	assert.Equal(t, "id-1", calls[0].ID)
	assert.Equal(t, "list_products", calls[1].Name)

	assert.Empty(t, a.parseToolCalls("no tools here"))
}
