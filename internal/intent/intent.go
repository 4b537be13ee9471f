// Package intent classifies inbound chat messages into menu, order, status,
// payment or support requests and extracts the order parameters they carry.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the classified purpose of a message.
type Kind string

const (
	Menu    Kind = "menu"
	Order   Kind = "order"
	Status  Kind = "status"
	Payment Kind = "payment"
	Support Kind = "support"
)

// Fixed confidence of each candidate when its keyword set matches.
const (
	MenuConfidence    = 0.95
	OrderConfidence   = 0.90
	StatusConfidence  = 0.88
	PaymentConfidence = 0.85
)

// candidates is the evaluation order; it doubles as the tie-break priority.
var candidates = []Kind{Menu, Order, Status, Payment}

var (
	menuKeywords = []string{
		"menu", "katalog", "catalog", "produk", "produknya", "list",
		"daftar", "apa aja", "apa aja produk", "lihat", "tampilkan",
	}
	paymentKeywords = []string{
		"bayar", "transfer", "payment", "harga", "berapa", "price", "biaya", "cost",
	}
	statusKeywords = []string{
		"status", "track", "tracking", "sudah", "dimana", "mana", "progress",
		"kapan", "jam", "berapa lama", "tiba", "sampai",
	}

	orderQtyRe   = regexp.MustCompile(`(?i)order\s+(\d+)\s+qty\s+(\d+)`)
	multiplyRe   = regexp.MustCompile(`(?i)(\d+)x\s+(?:barang[- ]?)?(\d+)`)
	simpleOrdRe  = regexp.MustCompile(`(?i)order\s+(\d+)`)
	qtyRe        = regexp.MustCompile(`(?i)qty\s+(\d+)`)
	orderPattern = []*regexp.Regexp{
		orderQtyRe,
		regexp.MustCompile(`(?i)pesan\s+`),
		regexp.MustCompile(`(?i)beli\s+`),
		regexp.MustCompile(`(?i)(\d+)x\s+`),
		qtyRe,
		regexp.MustCompile(`(?i)jumlah\s+(\d+)`),
		regexp.MustCompile(`(?i)order\s+`),
	}

	hashNumberRe   = regexp.MustCompile(`#(\d+)`)
	prefixNumberRe = regexp.MustCompile(`(?i)(?:order|pesanan|no|nomor|no\.|#)\s*(?:no\.?\s*)?(\d+)`)
	bareNumberRe   = regexp.MustCompile(`^\s*(\d+)\s*$`)
	orderNumberRe  = regexp.MustCompile(`(?i)\bORD-\d+-\d+-[A-Z0-9]+\b`)
)

// OrderDetails is the structured order carried by an order message.
type OrderDetails struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Intent is the result of Classify.
type Intent struct {
	Kind       Kind          `json:"kind"`
	Confidence float64       `json:"confidence"`
	Order      *OrderDetails `json:"order,omitempty"`
	OrderRef   string        `json:"order_ref,omitempty"`
}

// Classify picks the primary intent of text and extracts its parameters.
func Classify(text string) Intent {
	kind := PrimaryIntent(text)
	in := Intent{Kind: kind, Confidence: Confidence(text, kind)}
	switch kind {
	case Order:
		in.Order = ExtractOrderDetails(text)
	case Status:
		in.OrderRef, _ = ExtractOrderReference(text)
	}
	return in
}

// PrimaryIntent returns the candidate with the strictly highest confidence.
// Candidates are visited in priority order, so an equal score never displaces
// an earlier candidate. Support is returned when nothing matches.
func PrimaryIntent(text string) Kind {
	best, bestScore := Support, 0.0
	for _, k := range candidates {
		if s := Confidence(text, k); s > bestScore {
			best, bestScore = k, s
		}
	}
	return best
}

// Confidence returns the fixed confidence of k for text, or 0 if k does not match.
func Confidence(text string, k Kind) float64 {
	switch k {
	case Menu:
		if IsMenuRequest(text) {
			return MenuConfidence
		}
	case Order:
		if IsOrderRequest(text) {
			return OrderConfidence
		}
	case Status:
		if IsStatusRequest(text) {
			return StatusConfidence
		}
	case Payment:
		if IsPaymentRequest(text) {
			return PaymentConfidence
		}
	}
	return 0
}

// IsMenuRequest reports whether text contains a menu keyword, ignoring case.
func IsMenuRequest(text string) bool { return containsAny(text, menuKeywords) }

// IsPaymentRequest reports whether text contains a payment keyword, ignoring case.
func IsPaymentRequest(text string) bool { return containsAny(text, paymentKeywords) }

// IsStatusRequest reports whether text contains a status keyword, ignoring case.
func IsStatusRequest(text string) bool { return containsAny(text, statusKeywords) }

// IsOrderRequest reports whether any order pattern matches text.
func IsOrderRequest(text string) bool {
	for _, re := range orderPattern {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ExtractOrderDetails tries `order <id> qty <n>`, then `<n>x <id>` (or `<n>x barang-<id>`),
// then `order <id>` with an optional separate `qty <n>`. It returns nil when nothing
// matches or a number does not fit.
func ExtractOrderDetails(text string) *OrderDetails {
	if m := orderQtyRe.FindStringSubmatch(text); m != nil {
		return details(m[1], m[2])
	}
	if m := multiplyRe.FindStringSubmatch(text); m != nil {
		return details(m[2], m[1])
	}
	if m := simpleOrdRe.FindStringSubmatch(text); m != nil {
		qty := "1"
		if q := qtyRe.FindStringSubmatch(text); q != nil {
			qty = q[1]
		}
		return details(m[1], qty)
	}
	return nil
}

func details(productID, quantity string) *OrderDetails {
	pid, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return nil
	}
	qty, err := strconv.Atoi(quantity)
	if err != nil {
		return nil
	}
	return &OrderDetails{ProductID: pid, Quantity: qty}
}

// ExtractOrderNumber tries `#<n>`, then `order|pesanan|no|nomor <n>`, then a message
// made only of digits and surrounding whitespace.
func ExtractOrderNumber(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{hashNumberRe, prefixNumberRe, bareNumberRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractOrderReference prefers a full issued order number (ORD-...) and falls back
// to ExtractOrderNumber.
func ExtractOrderReference(text string) (string, bool) {
	if m := orderNumberRe.FindString(text); m != "" {
		return strings.ToUpper(m), true
	}
	return ExtractOrderNumber(text)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
