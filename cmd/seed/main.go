// Command seed loads demo orders into the configured database and, in HMAC
// auth mode, prints bearer tokens for trying the API locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"seller-portal/internal/auth"
	"seller-portal/internal/config"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/order"
	"seller-portal/internal/order/db"
	"seller-portal/internal/workflow"
)

var catalog = []models.LineItem{
	{Title: "Handloom Cotton Saree", SKU: "SAR-101", Quantity: 1, Price: 2499},
	{Title: "Brass Diya Set", SKU: "DIY-004", Quantity: 2, Price: 349},
	{Title: "Jute Tote Bag", SKU: "BAG-017", Quantity: 3, Price: 199},
	{Title: "Block Print Cushion Cover", SKU: "CUS-220", Quantity: 2, Price: 450},
}

func main() {
	merchants := flag.String("merchants", "merchant-1,merchant-2", "comma separated merchant ids")
	perMerchant := flag.Int("orders", 3, "orders to create per merchant")
	admin := flag.String("admin", "ops-admin", "admin user id for the printed token")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(cfg.Log.Dir, "seller-portal-seed")
	defer log.Close()

	ctx := context.Background()
	store, err := db.OpenAndMigrate(ctx, cfg.Database, log)
	if err != nil {
		log.Error("SEED", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	engine := workflow.NewEngine(cfg.Workflow.AcceptWindow, workflow.FlatPolicy{Window: cfg.Workflow.PlanWindow}, cfg.Invoice.BaseURL)
	svc := order.NewOrderService(store, engine, nil, nil, log)

	ids := strings.Split(*merchants, ",")
	now := time.Now()
	created := 0
	for m, merchantID := range ids {
		merchantID = strings.TrimSpace(merchantID)
		if merchantID == "" {
			continue
		}
		for i := 0; i < *perMerchant; i++ {
			number := 1001 + m*100 + i
			item := catalog[(m+i)%len(catalog)]
			item.Total = item.Price * float64(item.Quantity)

			in := models.IngestedOrder{
				ShopifyOrderID:  fmt.Sprintf("%d", 5000000+number),
				OrderNumber:     fmt.Sprintf("#%d", number),
				MerchantID:      merchantID,
				CreatedAt:       now.Add(-time.Duration(i) * 45 * time.Minute).UnixMilli(),
				Currency:        "INR",
				FinancialStatus: "paid",
				CustomerEmail:   fmt.Sprintf("buyer%d@example.com", number),
				LineItems:       []models.LineItem{item},
				Subtotal:        item.Total,
			}
			inserted, err := svc.IngestOrder(ctx, in)
			if err != nil {
				log.Error("SEED", fmt.Sprintf("Failed to seed %s: %v", in.OrderID(), err))
				os.Exit(1)
			}
			if inserted {
				created++
			}
		}
	}
	color.Green("✅ Seeded %d new orders for %d merchants", created, len(ids))

	if cfg.Auth.Mode != "hmac" {
		color.Yellow("AUTH_MODE=%s: tokens come from your identity provider", cfg.Auth.Mode)
		return
	}
	printToken := func(userID string, isAdmin bool) {
		tok, err := auth.IssueHMACToken(cfg.Auth.JWTSecret, userID, isAdmin, *tokenTTL)
		if err != nil {
			color.Red("Failed to issue token for %s: %v", userID, err)
			return
		}
		color.Cyan("%s (admin=%t):", userID, isAdmin)
		fmt.Println(tok)
	}
	for _, merchantID := range ids {
		if merchantID = strings.TrimSpace(merchantID); merchantID != "" {
			printToken(merchantID, false)
		}
	}
	printToken(*admin, true)
}
