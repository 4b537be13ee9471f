package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
)

// New returns a validator with the order_status tag and the struct-level rules
// of the request DTOs registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// errors are only returned for duplicate or empty tags
	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		return orders.ValidStatus(fl.Field().String())
	})

	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})
	v.RegisterStructValidation(updateStatusStructValidation, UpdateStatusRequest{})

	return v
}

// createOrderStructValidation rejects the same product/variant listed twice.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	type line struct {
		product int64
		variant int64
	}
	seen := map[line]bool{}
	for i, it := range req.Items {
		k := line{product: it.ProductID}
		if it.VariantID != nil {
			k.variant = *it.VariantID
		}
		if seen[k] {
			sl.ReportError(req.Items[i].ProductID, fmt.Sprintf("items[%d].product_id", i), fmt.Sprintf("Items[%d].ProductID", i), "unique_line", "")
		}
		seen[k] = true
	}
}

// updateStatusStructValidation only accepts a tracking number when shipping.
func updateStatusStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateStatusRequest)
	if req.TrackingNumber != "" && req.Status != orders.StatusShipped {
		sl.ReportError(req.TrackingNumber, "tracking_number", "TrackingNumber", "shipped_only", req.Status)
	}
}
