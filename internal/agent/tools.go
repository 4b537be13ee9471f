package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
)

// Tool names
const (
	ToolCreateOrder      = "create_order"
	ToolGetProductInfo   = "get_product_info"
	ToolCheckOrderStatus = "check_order_status"
	ToolListProducts     = "list_products"
)

// Tool describes an action the model may request.
type Tool struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
}

// DefaultTools is the toolset offered to the model.
var DefaultTools = []Tool{
	{Name: ToolCreateOrder, Description: "Create a new order for the customer", Required: []string{"productIds", "quantities"}},
	{Name: ToolGetProductInfo, Description: "Get detailed information about a product", Required: []string{"product_id"}},
	{Name: ToolCheckOrderStatus, Description: "Check the status of an existing order", Required: []string{"order_id"}},
	{Name: ToolListProducts, Description: "List available products in the store", Required: []string{}},
}

// ToolCall is a tool invocation parsed from a model reply.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult is what a tool returned. Failures never abort the loop.
type ToolResult struct {
	ToolName string `json:"toolName"`
	Success  bool   `json:"success"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OrderService is the slice of the order pipeline the tools use.
type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*orders.Order, error)
	Get(ctx context.Context, storeID int64, orderID string) (*orders.Order, error)
	GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*orders.Order, error)
}

// ProductReader reads the catalog.
type ProductReader interface {
	GetProduct(ctx context.Context, productID int64) (*catalog.Product, error)
	ListActiveProducts(ctx context.Context, storeID int64, limit int) ([]catalog.Product, error)
}

// Toolbox executes tool calls against the store scoped to the conversation.
type Toolbox struct {
	orders  OrderService
	catalog ProductReader
}

func NewToolbox(orderSvc OrderService, cat ProductReader) *Toolbox {
	return &Toolbox{orders: orderSvc, catalog: cat}
}

// Run executes one call. Unknown tools and tool errors become failed results.
func (tb *Toolbox) Run(ctx context.Context, call ToolCall, customerID string, storeID int64) ToolResult {
	res := ToolResult{ToolName: call.Name}
	var (
		out any
		err error
	)
	switch call.Name {
	case ToolCreateOrder:
		out, err = tb.createOrder(ctx, call.Input, customerID, storeID)
	case ToolGetProductInfo:
		out, err = tb.productInfo(ctx, call.Input, storeID)
	case ToolCheckOrderStatus:
		out, err = tb.orderStatus(ctx, call.Input, storeID)
	case ToolListProducts:
		out, err = tb.catalog.ListActiveProducts(ctx, storeID, catalog.MenuLimit)
	default:
		err = fmt.Errorf("unknown tool: %s", call.Name)
	}
	if err != nil {
		res.Error = toolError(err)
		return res
	}
	res.Success = true
	res.Result = out
	return res
}

type createOrderInput struct {
	ProductIDs []flexInt `json:"productIds"`
	Quantities []flexInt `json:"quantities"`
	VariantIDs []flexInt `json:"variantIds"`
}

func (tb *Toolbox) createOrder(ctx context.Context, raw json.RawMessage, customerID string, storeID int64) (*orders.Order, error) {
	var in createOrderInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	if len(in.ProductIDs) == 0 {
		return nil, fmt.Errorf("productIds is required")
	}
	lines := make([]orders.LineInput, 0, len(in.ProductIDs))
	for i, pid := range in.ProductIDs {
		line := orders.LineInput{ProductID: int64(pid), Quantity: 1}
		if i < len(in.Quantities) && in.Quantities[i] > 0 {
			line.Quantity = int(in.Quantities[i])
		}
		if i < len(in.VariantIDs) && in.VariantIDs[i] > 0 {
			v := int64(in.VariantIDs[i])
			line.VariantID = &v
		}
		lines = append(lines, line)
	}
	return tb.orders.CreateOrder(ctx, orders.CreateOrderInput{
		StoreID:    storeID,
		CustomerID: customerID,
		Items:      lines,
		Channel:    orders.ChannelAPI,
	})
}

func (tb *Toolbox) productInfo(ctx context.Context, raw json.RawMessage, storeID int64) (*catalog.Product, error) {
	var in struct {
		ProductID flexInt `json:"product_id"`
	}
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	p, err := tb.catalog.GetProduct(ctx, int64(in.ProductID))
	if err != nil {
		return nil, err
	}
	if p == nil || p.StoreID != storeID {
		return nil, fmt.Errorf("product not found")
	}
	return p, nil
}

type statusView struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	TotalAmount string `json:"total_amount"`
}

// orderStatus accepts either an order id or an ORD-... order number.
func (tb *Toolbox) orderStatus(ctx context.Context, raw json.RawMessage, storeID int64) (*statusView, error) {
	var in struct {
		OrderID     flexString `json:"order_id"`
		OrderNumber flexString `json:"order_number"`
	}
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	ref := string(in.OrderNumber)
	if ref == "" {
		ref = string(in.OrderID)
	}
	if ref == "" {
		return nil, fmt.Errorf("order_id is required")
	}

	var (
		o   *orders.Order
		err error
	)
	if strings.HasPrefix(strings.ToUpper(ref), "ORD-") {
		o, err = tb.orders.GetByNumber(ctx, storeID, strings.ToUpper(ref))
	} else {
		o, err = tb.orders.Get(ctx, storeID, ref)
	}
	if err != nil {
		return nil, err
	}
	return &statusView{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status, TotalAmount: o.TotalAmount}, nil
}

func toolError(err error) string {
	if apperr.KindOf(err) == apperr.KindInternal {
		return err.Error()
	}
	return apperr.Message(err)
}

func decodeInput(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}

// flexInt accepts 3 and "3".
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", s)
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts "abc" and 42.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
