package customers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws/awstest"
)

func newTestStore() (*DynamoStore, *awstest.FakeDynamo) {
	fake := awstest.NewFakeDynamo().
		CreateTable("customers", "customer_id").
		CreateTable("customer_phones", "phone_key")
	return NewDynamoStore(fake, "customers", "customer_phones"), fake
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	first, created, err := s.GetOrCreate(ctx, 1, "628111", "")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first contact")
	}
	if first.Name != "Customer 628111" {
		t.Fatalf("unexpected default name %q", first.Name)
	}

	second, created, err := s.GetOrCreate(ctx, 1, "628111", "Budi")
	if err != nil {
		t.Fatalf("second GetOrCreate error: %v", err)
	}
	if created {
		t.Fatalf("expected created=false for existing phone")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same customer id, got %s and %s", first.ID, second.ID)
	}
	if fake.Len("customers") != 1 || fake.Len("customer_phones") != 1 {
		t.Fatalf("expected exactly one customer row, got %d", fake.Len("customers"))
	}
}

func TestGetOrCreate_ScopedPerStore(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	a, _, err := s.GetOrCreate(ctx, 1, "628111", "Budi")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	b, created, err := s.GetOrCreate(ctx, 2, "628111", "Budi")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if !created || a.ID == b.ID || b.StoreID != 2 {
		t.Fatalf("expected a separate customer for store 2, got %+v", b)
	}
	if fake.Len("customers") != 2 {
		t.Fatalf("expected two customers, got %d", fake.Len("customers"))
	}
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, _, err := s.GetOrCreate(ctx, 1, "628222", "Sari")
			if err != nil {
				t.Errorf("GetOrCreate error: %v", err)
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected every caller to see the same customer, got %v", ids)
		}
	}
	if fake.Len("customers") != 1 {
		t.Fatalf("expected one row, got %d", fake.Len("customers"))
	}
}

// racingDynamo inserts a competing customer right before the first transaction.
type racingDynamo struct {
	*awstest.FakeDynamo
	once sync.Once
}

func (r *racingDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	r.once.Do(func() {
		c, _ := attributevalue.MarshalMap(Customer{ID: "winner", StoreID: 1, Phone: "628333", Name: "Winner", CreatedAt: time.Now()})
		g, _ := attributevalue.MarshalMap(phoneGuard{PhoneKey: PhoneKey(1, "628333"), CustomerID: "winner", StoreID: 1})
		r.Seed("customers", c)
		r.Seed("customer_phones", g)
	})
	return r.FakeDynamo.TransactWriteItems(ctx, in, optFns...)
}

func TestGetOrCreate_RetryAsLookup(t *testing.T) {
	_, fake := newTestStore()
	s := NewDynamoStore(&racingDynamo{FakeDynamo: fake}, "customers", "customer_phones")

	c, created, err := s.GetOrCreate(context.Background(), 1, "628333", "Loser")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if created || c.ID != "winner" {
		t.Fatalf("expected the winner row, got created=%v %+v", created, c)
	}
	if fake.Len("customers") != 1 {
		t.Fatalf("expected one row, got %d", fake.Len("customers"))
	}
	// the winner was written just now, so the lookup must not be served stale
	if n := fake.EventualReads("customer_phones") + fake.EventualReads("customers"); n != 0 {
		t.Fatalf("expected only consistent reads after a lost race, got %d eventual", n)
	}
}

func TestGetOrCreate_RequiresPhone(t *testing.T) {
	s, _ := newTestStore()
	if _, _, err := s.GetOrCreate(context.Background(), 1, "  ", ""); err == nil {
		t.Fatal("expected error for empty phone")
	}
}
