package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/attribution"
	"github.com/loyaltyledger/engine/idgen"
	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/ledger"
	"github.com/loyaltyledger/engine/lot"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/programconfig"
	"github.com/loyaltyledger/engine/rules/receipt"
	"github.com/loyaltyledger/engine/rules/redeem"
	"github.com/loyaltyledger/engine/settlement"
	"github.com/loyaltyledger/engine/store/postgres"
)

// This example demonstrates a complete flow through the loyalty engine:
// 1. Configure a program (earn multiplier, a stamp card, loyalty tiers)
// 2. Submit receipts and process their jobs (earning points + stamps)
// 3. Check the customer's balances
// 4. Redeem points and process the redemption job (FIFO lot consumption)
// 5. Run a settlement pass over the merchant liability account

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost/loyaltyledger?sslmode=disable"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	now := func() time.Time { return time.Now().UTC() }

	store := postgres.New(db)
	programConfig := programconfig.NewCached(store.ProgramConfigStoreView(), 128)
	processor := jobproc.NewProcessor(jobproc.Deps{
		DB:            store,
		ReceiptJobs:   store.ReceiptJobs(),
		RedeemJobs:    store.RedeemJobs(),
		Receipts:      store,
		Redeems:       store.RedeemStoreView(),
		Tiers:         store.TierStoreView(),
		Notify:        store,
		Ledger:        ledger.New(store, idgen.New, now),
		Lots:          lot.New(store, now, idgen.New),
		ProgramConfig: programConfig,
		Attribution:   attribution.New(store, store, store, now),
		ReceiptChain:  receipt.Chain(),
		RedeemChain:   redeem.Chain(),
		Now:           now,
		NewID:         idgen.New,
	})

	tenant := "demo-tenant"
	programID := "demo-program"
	accountRef := "customer-1"

	fmt.Println("=== Loyalty Ledger - Complete Flow Example ===")
	fmt.Println()

	// Step 1: Program configuration
	fmt.Println("Step 1: Configuring Program")
	fmt.Println("---------------------------")

	cfg := json.RawMessage(`{
		"points_multiplier": 1.5,
		"stamp_programs": [{"id": "coffee", "skus": ["latte", "espresso"], "stamps_per_item": 1, "threshold": 5}],
		"loyalty_tiers": {"window_days": 90, "tiers": [
			{"id": "base", "threshold_cents": 0},
			{"id": "silver", "display_name": "Silver", "threshold_cents": 15000}
		]}
	}`)
	if err := programConfig.Put(ctx, tenant, programID, cfg); err != nil {
		log.Fatal(err)
	}
	fmt.Println("  ✓ Program configured: 1.5x earn, coffee stamp card, two tiers")
	fmt.Println()

	// Step 2: Receipts
	fmt.Println("Step 2: Submitting Receipts")
	fmt.Println("---------------------------")

	receipts := []struct {
		totalCents int64
		items      string
	}{
		{15000, `{"items": [{"sku": "latte", "qty": 2}]}`},
		{7550, `{"items": [{"sku": "espresso", "qty": 3}]}`},
	}
	for _, r := range receipts {
		receiptID := idgen.New()
		if err := store.PutReceipt(ctx, model.Receipt{
			ReceiptID:       receiptID,
			Tenant:          tenant,
			IdempotencyKey:  idgen.New(),
			Fingerprint:     idgen.New(),
			MerchantID:      "cafe-42",
			AccountRef:      accountRef,
			ProgramID:       programID,
			GrandTotalCents: amount.FromInt64(r.totalCents),
			IssuedAt:        now(),
			Payload:         json.RawMessage(r.items),
			CreatedAt:       now(),
		}); err != nil {
			log.Fatal(err)
		}
		if err := store.EnqueueReceiptJob(ctx, model.Job{
			JobID:       idgen.New(),
			Tenant:      tenant,
			ReferenceID: receiptID,
			Status:      model.JobPending,
			AvailableAt: now(),
			CreatedAt:   now(),
		}); err != nil {
			log.Fatal(err)
		}
		if _, err := processor.ProcessNextReceiptJob(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  ✓ Receipt: %d cents processed\n", r.totalCents)
	}
	fmt.Println()

	// Step 3: Balances
	fmt.Println("Step 3: Customer Balances")
	fmt.Println("-------------------------")

	customerAccount := model.CustomerAccountID(tenant, accountRef)
	balances, err := store.AccountBalances(ctx, tenant, customerAccount, programID)
	if err != nil {
		log.Fatal(err)
	}
	for _, b := range balances {
		fmt.Printf("  %s: %d\n", b.Unit, b.Qty)
	}
	fmt.Println()

	// Step 4: Redemption
	fmt.Println("Step 4: Redeeming Points")
	fmt.Println("------------------------")

	requestID := idgen.New()
	if err := store.PutRedeemRequest(ctx, model.RedeemRequest{
		RequestID: requestID,
		Tenant:    tenant,
		AccountID: accountRef,
		ProgramID: programID,
		Unit:      "points",
		Qty:       amount.FromInt64(100),
		Memo:      "demo redemption",
		CreatedAt: now(),
	}); err != nil {
		log.Fatal(err)
	}
	if err := store.EnqueueRedeemJob(ctx, model.Job{
		JobID:       idgen.New(),
		Tenant:      tenant,
		ReferenceID: requestID,
		Status:      model.JobPending,
		AvailableAt: now(),
		CreatedAt:   now(),
	}); err != nil {
		log.Fatal(err)
	}
	if _, err := processor.ProcessNextRedeemJob(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println("  ✓ Redeemed 100 points (oldest lots consumed first)")
	fmt.Println()

	// Step 5: Settlement
	fmt.Println("Step 5: Settlement Report")
	fmt.Println("=========================")

	reporter := settlement.New(store, now, settlement.Config{})
	n, err := reporter.Run(ctx, nil, tenant)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  ✓ Settlement rows written: %d\n", n)
}
