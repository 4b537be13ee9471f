package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws/awstest"
)

func newTestStore() (*DynamoStore, *awstest.FakeDynamo) {
	fake := awstest.NewFakeDynamo().
		CreateTable("stores", "store_id").
		CreateTable("products", "product_id").
		CreateIndex("products", StoreIndex, "store_id")
	return NewDynamoStore(fake, "stores", "products"), fake
}

func TestStore_PutGet(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	if err := s.PutStore(ctx, Store{ID: 1, OwnerUserID: "u1", Name: "Toko Sabun"}); err != nil {
		t.Fatalf("PutStore error: %v", err)
	}
	st, err := s.GetStore(ctx, 1)
	if err != nil {
		t.Fatalf("GetStore error: %v", err)
	}
	if st == nil || st.Name != "Toko Sabun" || st.CreatedAt.IsZero() {
		t.Fatalf("unexpected store %+v", st)
	}

	missing, err := s.GetStore(ctx, 2)
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing store, got %+v, %v", missing, err)
	}
}

func TestProduct_PutGet(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	if err := s.PutProduct(ctx, Product{ID: 1, StoreID: 1, Name: "Shampo", Price: "15000.50", IsActive: true}); err != nil {
		t.Fatalf("PutProduct error: %v", err)
	}
	p, err := s.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct error: %v", err)
	}
	if p == nil || p.Price != "15000.50" || p.StoreID != 1 {
		t.Fatalf("unexpected product %+v", p)
	}
	price, err := p.PriceDecimal()
	if err != nil || price.String() != "15000.5" {
		t.Fatalf("unexpected price %v (%v)", price, err)
	}
}

func TestListActiveProducts(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	for _, p := range []Product{
		{ID: 12, StoreID: 1, Name: "c", Price: "3", IsActive: true},
		{ID: 2, StoreID: 1, Name: "a", Price: "1", IsActive: true},
		{ID: 5, StoreID: 1, Name: "inactive", Price: "1", IsActive: false},
		{ID: 7, StoreID: 1, Name: "b", Price: "2", IsActive: true},
		{ID: 3, StoreID: 2, Name: "other store", Price: "1", IsActive: true},
	} {
		if err := s.PutProduct(ctx, p); err != nil {
			t.Fatalf("PutProduct error: %v", err)
		}
	}

	got, err := s.ListActiveProducts(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListActiveProducts error: %v", err)
	}
	if len(got) != 3 || got[0].ID != 2 || got[1].ID != 7 || got[2].ID != 12 {
		t.Fatalf("unexpected products %+v", got)
	}

	limited, err := s.ListActiveProducts(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListActiveProducts error: %v", err)
	}
	if len(limited) != 2 || limited[1].ID != 7 {
		t.Fatalf("unexpected limited products %+v", limited)
	}

	empty, err := s.ListActiveProducts(ctx, 9, 10)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty catalog, got %+v, %v", empty, err)
	}
}

func TestListActiveProducts_QueryError(t *testing.T) {
	s, fake := newTestStore()
	fake.FailOn("Query", errors.New("throttled"))

	if _, err := s.ListActiveProducts(context.Background(), 1, 10); err == nil {
		t.Fatal("expected error")
	}
}
