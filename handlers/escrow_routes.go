// handlers/escrow_routes.go
package handlers

import (
	"log"

	"tournament-escrow-system/middleware"
	"tournament-escrow-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEscrowRoutes wires the escrow surface. Exactly one distribution
// strategy is registered per deployment: the maintainer-push batch routes or
// the signature-claim route, never both.
func SetupEscrowRoutes(app *fiber.App, escrow *services.EscrowService, claims *services.ClaimService, strategy services.DistributionStrategy) {
	// Public reads.
	app.Get("/escrow/games/:id/tournaments/:tid/bucket", escrow.GetBucketHandler)
	app.Get("/escrow/audit", escrow.AuditHandler)

	secured := app.Group("/", middleware.CallerContextMiddleware())

	secured.Post("/escrow/games/:id/tournaments/:tid/deposit", escrow.DepositHandler)
	secured.Post("/escrow/games/:id/tournaments/:tid/prize", escrow.DepositPrizeHandler)
	secured.Delete("/escrow/games/:id/tournaments/:tid/prize", escrow.WithdrawPrizeHandler)
	secured.Post("/escrow/games/:id/tournaments/:tid/nft-prize", escrow.DepositNFTPrizeHandler)
	secured.Delete("/escrow/games/:id/tournaments/:tid/nft-prize", escrow.WithdrawNFTPrizeHandler)

	switch strategy.Name() {
	case "claim":
		secured.Post("/escrow/games/:id/claim", claims.ClaimHandler)
	default:
		secured.Post("/escrow/games/:id/tournaments/:tid/distribute", escrow.DistributePrizeHandler)
		secured.Post("/escrow/games/:id/tournaments/:tid/distribute-nft", escrow.DistributeNFTPrizeHandler)
	}
	log.Printf("[ROUTES] distribution strategy: %s", strategy.Name())

	secured.Post("/escrow/sweep", escrow.SweepHandler)
	secured.Put("/escrow/platform-fee", escrow.UpdatePlatformFeeHandler)
	secured.Post("/escrow/pause", escrow.PauseHandler)
	secured.Post("/escrow/unpause", escrow.UnpauseHandler)
	secured.Post("/escrow/recovery/enter", escrow.EnterRecoveryModeHandler)
	secured.Post("/escrow/recovery/exit", escrow.ExitRecoveryModeHandler)
}
