// Package stockledger is a multi-branch inventory ledger for a grocery
// chain. Staff record purchases and consumption per branch; the ledger
// keeps one running aggregate row per (branch, item) in each collection,
// rejects consumption larger than the stock on hand, and appends a
// history record for every accepted change.
//
// Stockledger is a library first. The HTTP API in package api and the
// daemon in cmd/stockledgerd are thin layers over a Ledger.
//
// # Quick Start
//
//	import (
//	    "github.com/sukino/stockledger"
//	    "github.com/sukino/stockledger/access"
//	    "github.com/sukino/stockledger/store/memory"
//	)
//
//	l := stockledger.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	ctx = access.WithPrincipal(ctx, access.Principal{UserID: "u1", Role: access.RoleAdmin})
//	_, err := l.RecordPurchase(ctx, stockledger.PurchaseInput{
//	    Branch: "Koramangala", Description: "Toor Dal", Vendor: "Metro",
//	    BillNo: "B-17", BillAmount: "1450", Qty: "10", UnitOfMeasure: "kg",
//	})
//
// # Items
//
// An item is identified by its description with surrounding spaces removed
// and letters lowercased, so " Toor Dal" and "toor dal" are the same item.
// Rows written before that key was stored are still found: when the
// indexed lookup comes back empty the branch is scanned.
//
// # Totals
//
// The purchased total of an item is the NewTotal of its purchase row, the
// consumed total the TotalConsumed of its consumption row, and the
// available stock max(0, purchased - consumed). When duplicate rows exist
// the largest value wins; MergeDuplicates collapses them.
//
// # Concurrency
//
// Writers of the same item are serialized by a Locker (in-process by
// default, Redis via lock/redis across processes), and every update is a
// compare-and-swap on the row version, retried a few times on conflict.
//
// # Roles
//
// Admins can do everything. Branch managers read and record movements,
// confined to their assigned branch when one is set. Users only read.
package stockledger
