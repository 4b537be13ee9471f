package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
)

func call(name, input string) ToolCall {
	return ToolCall{ID: "t", Name: name, Input: json.RawMessage(input)}
}

func TestToolbox_ProductInfoIsStoreScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.toolbox.Run(ctx, call(ToolGetProductInfo, `{"product_id": 1}`), f.customer.ID, 1)
	require.True(t, res.Success)
	assert.Equal(t, "Kopi Susu", res.Result.(*catalog.Product).Name)

	res = f.toolbox.Run(ctx, call(ToolGetProductInfo, `{"product_id": 9}`), f.customer.ID, 1)
	assert.False(t, res.Success)
	assert.Equal(t, "product not found", res.Error)
}

func TestToolbox_ListProducts(t *testing.T) {
	f := newFixture(t)
	res := f.toolbox.Run(context.Background(), call(ToolListProducts, ``), f.customer.ID, 1)
	require.True(t, res.Success)
	products := res.Result.([]catalog.Product)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
}

func TestToolbox_CheckOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.CreateSingleItemOrder(ctx, 1, f.customer.ID, 1, 1)
	require.NoError(t, err)

	for _, input := range []string{
		`{"order_id": "` + o.ID + `"}`,
		`{"order_id": "` + o.OrderNumber + `"}`,
		`{"order_number": "` + o.OrderNumber + `"}`,
	} {
		res := f.toolbox.Run(ctx, call(ToolCheckOrderStatus, input), f.customer.ID, 1)
		require.True(t, res.Success, input)
		v := res.Result.(*statusView)
		assert.Equal(t, orders.StatusPending, v.Status)
		assert.Equal(t, o.ID, v.OrderID)
	}

	res := f.toolbox.Run(ctx, call(ToolCheckOrderStatus, `{"order_id": "`+o.ID+`"}`), f.customer.ID, 2)
	assert.False(t, res.Success)

	res = f.toolbox.Run(ctx, call(ToolCheckOrderStatus, `{}`), f.customer.ID, 1)
	assert.Equal(t, "order_id is required", res.Error)
}

func TestToolbox_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.toolbox.Run(ctx, call("refund_everything", `{}`), f.customer.ID, 1)
	assert.False(t, res.Success)
	assert.Equal(t, "unknown tool: refund_everything", res.Error)

	res = f.toolbox.Run(ctx, call(ToolCreateOrder, `{"productIds": []}`), f.customer.ID, 1)
	assert.False(t, res.Success)
	assert.Equal(t, "productIds is required", res.Error)

	res = f.toolbox.Run(ctx, call(ToolCreateOrder, `{"productIds": [9]}`), f.customer.ID, 1)
	assert.False(t, res.Success)

	res = f.toolbox.Run(ctx, call(ToolCreateOrder, `{"productIds": ["abc"]}`), f.customer.ID, 1)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid tool input")
}
