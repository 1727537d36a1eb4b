package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	catalog := core.NewCatalogService(pool)
	bundles := core.NewBundleService(pool)
	receipts := core.NewReceiptService(pool)
	cogs := core.NewCOGSService(pool, catalog, bundles)
	reporting := core.NewReportingService(pool)

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "migrate":
		path := "migrations/001_init.sql"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read migration %s: %v", path, err)
		}
		if _, err := pool.Exec(ctx, string(sqlBytes)); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Printf("Applied %s", path)

	case "create-user":
		if len(os.Args) < 4 {
			log.Fatal("Usage: app create-user <username> <password> [role]")
		}
		role := "staff"
		if len(os.Args) > 4 {
			role = os.Args[4]
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[3]), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO users (username, password_hash, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role`,
			os.Args[2], string(hash), role,
		); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		log.Printf("User %s ready", os.Args[2])

	case "daily-cogs":
		if len(os.Args) < 3 {
			log.Fatal("Usage: app daily-cogs <YYYY-MM-DD>")
		}
		daily, err := reporting.ComputeDailyCOGS(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Failed to compute daily COGS: %v", err)
		}
		breakdown, err := reporting.GetCOGSBreakdown(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Failed to compute breakdown: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(map[string]any{"daily": daily, "breakdown": breakdown})

	case "receive":
		if len(os.Args) < 6 {
			log.Fatal("Usage: app receive <sku> <qty> <unit_cost> <ref_id>")
		}
		qty, err := decimal.NewFromString(os.Args[3])
		if err != nil {
			log.Fatalf("Invalid quantity: %v", err)
		}
		unitCost, err := decimal.NewFromString(os.Args[4])
		if err != nil {
			log.Fatalf("Invalid unit cost: %v", err)
		}
		actor := cliActor()
		layerID, err := receipts.RecordPurchaseReceipt(ctx, actor, os.Args[2], qty, unitCost, time.Now(), os.Args[5])
		if err != nil {
			log.Fatalf("Failed to record receipt: %v", err)
		}
		log.Printf("Receipt layer %d recorded for %s", layerID, os.Args[2])

	case "allocations":
		if len(os.Args) < 3 {
			log.Fatal("Usage: app allocations <order_id>")
		}
		allocs, err := cogs.GetAllocationsForOrder(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Failed to load allocations: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(allocs)

	default:
		usage()
	}
}

// cliActor is the implicit operator identity for command-line maintenance.
func cliActor() core.ActorContext {
	return core.ActorContext{UserID: 1, Username: "cli", Role: "admin"}
}

func usage() {
	fmt.Println("Usage: app <command>")
	fmt.Println("  migrate [path]                       apply schema migration")
	fmt.Println("  create-user <name> <pass> [role]     create or update a user")
	fmt.Println("  receive <sku> <qty> <cost> <ref>     record a purchase receipt")
	fmt.Println("  allocations <order_id>               print an order's COGS ledger")
	fmt.Println("  daily-cogs <YYYY-MM-DD>              print a day's COGS report")
}
