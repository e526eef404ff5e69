package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ArcInvoice/ArcInvoiceServer/internal/config"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/faucet"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/ledger"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/models"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/server"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/store"
	"github.com/ArcInvoice/ArcInvoiceServer/internal/utils"
)

func main() {
	logger := utils.GetLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&models.FaucetClaim{}, &models.Invoice{}); err != nil {
		logger.Fatalf("Failed to migrate database schema: %v", err)
	}

	claims := store.NewGormClaimStore(db)
	invoices := store.NewGormInvoiceStore(db)
	policy := &faucet.WalletOrIPPolicy{Claims: claims, Cooldown: cfg.CooldownDuration}

	hub := server.NewHub(logger, originChecker(cfg.AllowedOrigins))

	var arbiter *faucet.Arbiter
	if cfg.FaucetEnabled() {
		dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		chain, err := ledger.Dial(dialCtx, cfg.RPCEndpoint, cfg.FaucetPrivateKey, cfg.ChainID)
		cancel()
		if err != nil {
			// A bad key or unreachable node degrades the faucet, it does not
			// take the invoice API down with it.
			logger.Printf("Faucet disabled, ledger client unavailable: %v", err)
			arbiter = faucet.NewDisabled(logger, policy, claims)
		} else {
			amountWei, err := cfg.AmountBaseUnits()
			if err != nil {
				logger.Fatalf("Invalid faucet amount: %v", err)
			}
			arbiter = faucet.New(logger, policy, claims, chain, amountWei, cfg.FaucetAmount).
				WithConfirmationSink(hub)
			logger.Printf("Faucet dispensing %s tokens from %s", cfg.FaucetAmount, chain.FaucetAddress().Hex())
		}
	} else {
		logger.Printf("Faucet disabled: signing key or RPC endpoint not configured")
		arbiter = faucet.NewDisabled(logger, policy, claims)
	}

	srv := server.New(logger, arbiter, claims, invoices, hub)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		router := srv.Router(cfg.AllowedOrigins)
		logger.Printf("Starting API server on %s", cfg.ListenAddr)
		if err := router.Run(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to run API server: %v", err)
		}
	}()

	<-stop
	logger.Println("Shutting down...")
	sqlDB.Close()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}
