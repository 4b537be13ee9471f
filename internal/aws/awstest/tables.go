package awstest

// NewServiceDynamo returns a fake holding every table of the service under its
// default name, with the store and customer indexes.
func NewServiceDynamo() *FakeDynamo {
	return NewFakeDynamo().
		CreateTable("stores", "store_id").
		CreateTable("products", "product_id").
		CreateIndex("products", "store_id-index", "store_id").
		CreateTable("customers", "customer_id").
		CreateTable("customer_phones", "phone_key").
		CreateTable("orders", "order_id").
		CreateTable("order_numbers", "number_key").
		CreateTable("order_status_history", "history_id").
		CreateTable("customer_messages", "message_id").
		CreateIndex("customer_messages", "customer_id-index", "customer_id").
		CreateTable("idempotency", "idempotency_key")
}
