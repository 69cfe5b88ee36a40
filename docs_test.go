package stockledger_test

import (
	"context"
	"fmt"
	"log"
	"testing"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/branch"
	"github.com/sukino/stockledger/store/memory"
)

// TestDocumentationExamples verifies that the package documentation
// example runs as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		l := stockledger.New(memory.New())
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		ctx = access.WithPrincipal(ctx, access.Principal{UserID: "u1", Role: access.RoleAdmin})
		_, err := l.RecordPurchase(ctx, stockledger.PurchaseInput{
			Branch: "Koramangala", Description: "Toor Dal", Vendor: "Metro",
			BillNo: "B-17", BillAmount: "1450", Qty: "10", UnitOfMeasure: "kg",
		})
		if err != nil {
			t.Fatal(err)
		}

		avail, err := l.Available(ctx, "Koramangala", " toor dal")
		if err != nil {
			t.Fatal(err)
		}
		if avail.String() != "10" {
			t.Errorf("Available: got %s, want 10", avail)
		}
	})
}

func ExampleLedger_RecordConsumption() {
	ctx := context.Background()
	l := stockledger.New(memory.New())
	if err := l.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer l.Stop()

	ctx = access.WithPrincipal(ctx, access.Principal{Name: "Ravi", Role: access.RoleBranchManager, Branch: branch.Cochin})

	if _, err := l.RecordPurchase(ctx, stockledger.PurchaseInput{
		Description: "Sugar", Vendor: "Metro", BillNo: "B-9",
		BillAmount: "420", Qty: "5", UnitOfMeasure: "kg",
	}); err != nil {
		log.Fatal(err)
	}

	c, err := l.RecordConsumption(ctx, stockledger.ConsumptionInput{Description: "sugar", Qty: "2"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(c.Branch, c.TotalConsumed, c.Balance)

	_, err = l.RecordConsumption(ctx, stockledger.ConsumptionInput{Description: "Sugar", Qty: "4"})
	fmt.Println(err)
	// Output:
	// Cochin 2 3
	// Cannot consume 4. Available stock for "Sugar" is 3.
}
