package whatsapp

import (
	"strings"
	"testing"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/stretchr/testify/assert"
)

func TestFormatRupiah(t *testing.T) {
	cases := map[string]string{
		"15000":      "Rp15.000",
		"15000.00":   "Rp15.000",
		"0":          "Rp0",
		"999":        "Rp999",
		"1234567":    "Rp1.234.567",
		"1500.5":     "Rp1.500,5",
		"0.1":        "Rp0,1",
		"10.12345":   "Rp10,123",
		"-2500":      "-Rp2.500",
		"-15000":     "-Rp15.000",
		"-1500.5":    "-Rp1.500,5",
		"-0.0001":    "Rp0",
		"not-number": "Rpnot-number",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatRupiah(in), in)
	}
}

func TestFormatMenu(t *testing.T) {
	assert.Equal(t, MsgCatalogEmpty, FormatMenu(nil))

	one := FormatMenu([]catalog.Product{{ID: 1, Name: "Kopi Susu", Price: "15000"}})
	assert.Equal(t, "🏪 *Katalog Produk*\n\n"+
		"1. *Kopi Susu*\n"+
		"   Harga: Rp15.000\n\n"+
		"Untuk memesan, kirim:\n"+
		"`order [nomor] qty [jumlah]`\n"+
		"Contoh: `order 1 qty 2`", one)

	long := strings.Repeat("é", 150)
	msg := FormatMenu([]catalog.Product{{ID: 4, Name: "Roti", Price: "8000", Description: long}})
	assert.Contains(t, msg, "4. *Roti*")
	assert.Contains(t, msg, "   "+strings.Repeat("é", 100)+"\n")
	assert.NotContains(t, msg, strings.Repeat("é", 101))
}

func sampleOrder(status string) *orders.Order {
	return &orders.Order{
		OrderNumber: "ORD-1-123456-ABCDEF",
		Status:      status,
		TotalAmount: "30000",
		Items: []orders.Item{
			{ProductID: 1, ProductName: "Kopi Susu", Quantity: 2, UnitPrice: "15000", Subtotal: "30000"},
		},
	}
}

func TestFormatOrderConfirmation(t *testing.T) {
	o := sampleOrder(orders.StatusPending)

	withLink := FormatOrderConfirmation(o, "https://pay.example/x")
	assert.Equal(t, "*✅ Pesanan Dikonfirmasi*\n\n"+
		"Nomor Pesanan: *ORD-1-123456-ABCDEF*\n"+
		"Status: pending\n\n"+
		"*Detail Pesanan:*\n"+
		"• Kopi Susu x2\n"+
		"  Rp15.000\n"+
		"\n*Total: Rp30.000*\n"+
		"\nLakukan pembayaran di sini:\nhttps://pay.example/x\n"+
		"Link berlaku selama 1 jam.", withLink)

	noLink := FormatOrderConfirmation(o, "")
	assert.NotContains(t, noLink, "Lakukan pembayaran")
	assert.True(t, strings.HasSuffix(noLink, "*Total: Rp30.000*\n"))

	degraded := FormatOrderConfirmationWithoutLink(o)
	assert.True(t, strings.HasSuffix(degraded, MsgPaymentLinkDegraded))
	assert.Contains(t, degraded, "ORD-1-123456-ABCDEF")
}

func TestFormatOrderStatus(t *testing.T) {
	shipped := FormatOrderStatus(sampleOrder(orders.StatusShipped))
	assert.True(t, strings.HasPrefix(shipped, "🚚 *Status Pesanan*\n\n"))
	assert.Contains(t, shipped, "Status: *SHIPPED*\n")
	assert.Contains(t, shipped, "Total: Rp30.000\n")
	assert.True(t, strings.HasSuffix(shipped, "\n📦 Pesanan sedang dalam perjalanan ke tangan Anda!"))

	assert.Contains(t, FormatOrderStatus(sampleOrder(orders.StatusDelivered)), "Pesanan telah tiba!")
	assert.Contains(t, FormatOrderStatus(sampleOrder(orders.StatusProcessing)), "sedang dikemas")

	pending := FormatOrderStatus(sampleOrder(orders.StatusPending))
	assert.True(t, strings.HasPrefix(pending, "⏳"))
	assert.True(t, strings.HasSuffix(pending, "Total: Rp30.000\n"), "no follow-up for pending")

	unknown := FormatOrderStatus(sampleOrder("on_hold"))
	assert.True(t, strings.HasPrefix(unknown, "ℹ️"))
}

func TestFormatNotifications(t *testing.T) {
	o := sampleOrder(orders.StatusConfirmed)

	paid := FormatPaymentConfirmation(o)
	assert.Contains(t, paid, "Pesanan: *ORD-1-123456-ABCDEF*")
	assert.Contains(t, paid, "Jumlah: Rp30.000")

	assert.Contains(t, FormatShipped(o, "JNE123"), "Nomor Tracking: JNE123\n")
	assert.NotContains(t, FormatShipped(o, ""), "Nomor Tracking")

	assert.Contains(t, FormatDelivered(o), "Nomor Pesanan: ORD-1-123456-ABCDEF\n")
	assert.Equal(t, "Pesanan dengan nomor 42 tidak ditemukan.", FormatOrderNotFound("42"))
}
