package whatsapp

import (
	"fmt"
	"strings"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fixed customer texts.
const (
	MsgCatalogEmpty        = "Maaf, katalog produk sedang kosong. Hubungi admin untuk informasi lebih lanjut."
	MsgHelp                = "Maaf, saya tidak mengerti. Ketik *menu* untuk melihat katalog produk kami."
	MsgInvalidOrderFormat  = "Format pesanan tidak valid.\nContoh: `order 1 qty 2`"
	MsgMissingOrderNumber  = "Mohon sertakan nomor pesanan untuk tracking.\nContoh: `status #123` atau `track 123`"
	MsgApology             = "Terjadi kesalahan dalam memproses pesanan Anda. Silakan coba lagi nanti atau hubungi admin."
	MsgOrderApology        = "Maaf, terjadi kesalahan dalam memproses pesanan. Silakan coba lagi nanti."
	MsgPaymentLinkDegraded = "Link pembayaran sedang tidak tersedia. Kami akan mengirimkannya segera."
)

const descriptionLimit = 100

var idPrinter = message.NewPrinter(language.Indonesian)

var statusEmoji = map[string]string{
	orders.StatusPending:    "⏳",
	orders.StatusConfirmed:  "✅",
	orders.StatusProcessing: "🔄",
	orders.StatusShipped:    "🚚",
	orders.StatusDelivered:  "📦",
	orders.StatusCancelled:  "❌",
	orders.StatusRefunded:   "💸",
}

var statusFollowUp = map[string]string{
	orders.StatusShipped:    "📦 Pesanan sedang dalam perjalanan ke tangan Anda!",
	orders.StatusDelivered:  "✅ Pesanan telah tiba! Terima kasih telah berbelanja.",
	orders.StatusProcessing: "🔄 Pesanan sedang dikemas, akan dikirim segera.",
}

// FormatRupiah renders a decimal amount as Rupiah with id-ID grouping:
// "15000" → "Rp15.000", "1500.5" → "Rp1.500,5", "-2500" → "-Rp2.500".
// At most 3 fraction digits are kept.
func FormatRupiah(amount string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "Rp" + amount
	}
	d = d.Round(3)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	out := sign + "Rp" + idPrinter.Sprintf("%d", whole.IntPart())
	if frac := d.Sub(whole); !frac.IsZero() {
		// "0.5" → "5"
		out += "," + strings.TrimPrefix(frac.String(), "0.")
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FormatMenu lists products. Each line is numbered with the product id, which is the
// number customers put in an `order` command.
func FormatMenu(products []catalog.Product) string {
	if len(products) == 0 {
		return MsgCatalogEmpty
	}
	var b strings.Builder
	b.WriteString("🏪 *Katalog Produk*\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "%d. *%s*\n", p.ID, p.Name)
		fmt.Fprintf(&b, "   Harga: %s\n", FormatRupiah(p.Price))
		if p.Description != "" {
			fmt.Fprintf(&b, "   %s\n", truncateRunes(p.Description, descriptionLimit))
		}
		b.WriteString("\n")
	}
	b.WriteString("Untuk memesan, kirim:\n")
	b.WriteString("`order [nomor] qty [jumlah]`\n")
	b.WriteString("Contoh: `order 1 qty 2`")
	return b.String()
}

// FormatOrderConfirmation echoes the order. paymentLink may be empty.
func FormatOrderConfirmation(o *orders.Order, paymentLink string) string {
	var b strings.Builder
	b.WriteString("*✅ Pesanan Dikonfirmasi*\n\n")
	fmt.Fprintf(&b, "Nomor Pesanan: *%s*\n", o.OrderNumber)
	fmt.Fprintf(&b, "Status: %s\n\n", o.Status)
	b.WriteString("*Detail Pesanan:*\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "• %s x%d\n", it.ProductName, it.Quantity)
		fmt.Fprintf(&b, "  %s\n", FormatRupiah(it.UnitPrice))
	}
	fmt.Fprintf(&b, "\n*Total: %s*\n", FormatRupiah(o.TotalAmount))
	if paymentLink != "" {
		fmt.Fprintf(&b, "\nLakukan pembayaran di sini:\n%s\n", paymentLink)
		b.WriteString("Link berlaku selama 1 jam.")
	}
	return b.String()
}

// FormatOrderConfirmationWithoutLink is the confirmation sent when the payment link
// could not be issued. The order stands.
func FormatOrderConfirmationWithoutLink(o *orders.Order) string {
	return FormatOrderConfirmation(o, "") + "\n" + MsgPaymentLinkDegraded
}

func FormatOrderStatus(o *orders.Order) string {
	emoji, ok := statusEmoji[o.Status]
	if !ok {
		emoji = "ℹ️"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *Status Pesanan*\n\n", emoji)
	fmt.Fprintf(&b, "Nomor: *%s*\n", o.OrderNumber)
	fmt.Fprintf(&b, "Status: *%s*\n", strings.ToUpper(o.Status))
	fmt.Fprintf(&b, "Total: %s\n", FormatRupiah(o.TotalAmount))
	if extra, ok := statusFollowUp[o.Status]; ok {
		b.WriteString("\n" + extra)
	}
	return b.String()
}

func FormatPaymentConfirmation(o *orders.Order) string {
	var b strings.Builder
	b.WriteString("*💳 Pembayaran Berhasil!*\n\n")
	fmt.Fprintf(&b, "Pesanan: *%s*\n", o.OrderNumber)
	fmt.Fprintf(&b, "Jumlah: %s\n", FormatRupiah(o.TotalAmount))
	b.WriteString("Status: Dikonfirmasi\n\n")
	b.WriteString("Barang akan dikirim dalam 1-2 jam.\n")
	b.WriteString("Anda akan menerima update tracking segera.")
	return b.String()
}

// FormatShipped announces shipment. trackingNumber is optional.
func FormatShipped(o *orders.Order, trackingNumber string) string {
	var b strings.Builder
	b.WriteString("*📦 Pesanan Dikirim!*\n\n")
	fmt.Fprintf(&b, "Nomor Pesanan: %s\n", o.OrderNumber)
	if trackingNumber != "" {
		fmt.Fprintf(&b, "Nomor Tracking: %s\n", trackingNumber)
	}
	b.WriteString("\nPesanan Anda sedang dalam perjalanan.\n")
	b.WriteString("Anda akan menerima notifikasi ketika pesanan tiba.")
	return b.String()
}

func FormatDelivered(o *orders.Order) string {
	var b strings.Builder
	b.WriteString("*✅ Pesanan Tiba!*\n\n")
	fmt.Fprintf(&b, "Nomor Pesanan: %s\n", o.OrderNumber)
	b.WriteString("Terima kasih telah berbelanja dengan kami!\n\n")
	b.WriteString("Jika ada pertanyaan, hubungi kami kapan saja.")
	return b.String()
}

func FormatOrderNotFound(orderNumber string) string {
	return fmt.Sprintf("Pesanan dengan nomor %s tidak ditemukan.", orderNumber)
}
