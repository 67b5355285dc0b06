package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tournament-escrow-system/handlers"
	"tournament-escrow-system/middleware"
	"tournament-escrow-system/models"
	"tournament-escrow-system/services"
	"tournament-escrow-system/utils"
	"tournament-escrow-system/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// Only Gateway requests allowed — no exceptions.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token, X-Caller-Address",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.AddressBookEntry{},
		&models.Game{},
		&models.Tournament{},
		&models.DepositToken{},
		&models.DistributableToken{},
		&models.TokenBucket{},
		&models.NFTBucket{},
		&models.UsedClaim{},
		&models.PlatformFee{},
		&models.SweepRecord{},
		&models.SweepTotal{},
		&models.EscrowState{},
		&models.VaultBalance{},
		&models.VaultMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	addressBook := services.NewAddressBookService(db)
	vault := services.NewLedgerVault(db)
	registry := services.NewGameRegistryService(db, addressBook)
	escrow := services.NewEscrowService(db, vault, addressBook)
	claims := services.NewClaimService(db, vault, addressBook, registry, escrow)

	// Registry debits the tournament creation fee through the escrow vault and
	// the escrow consults the registry's token policies, so the two are wired
	// after construction.
	registry.Escrow = escrow
	escrow.Registry = registry

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vaultSyncClient := workers.NewVaultSyncClient(db)
	go workers.PollVault(ctx, vaultSyncClient, 10*time.Second)

	escrow.StartSolvencyAuditScheduler(15 * time.Minute)

	// Exactly one distribution strategy per deployment.
	var strategy services.DistributionStrategy = escrow
	if os.Getenv("DISTRIBUTION_MODE") == "claim" {
		strategy = claims
	}

	handlers.SetupRegistryRoutes(app, registry, addressBook)
	handlers.SetupEscrowRoutes(app, escrow, claims, strategy)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("Server running on http://localhost:5300")
	log.Println("Vault polling running (every 10s)")
	log.Printf("Distribution strategy: %s", strategy.Name())
	log.Println("GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
