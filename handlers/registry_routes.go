// handlers/registry_routes.go
package handlers

import (
	"tournament-escrow-system/middleware"
	"tournament-escrow-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRegistryRoutes(app *fiber.App, registry *services.GameRegistryService, addresses *services.AddressBookService) {
	// Public reads — no caller context, still behind Gateway auth.
	app.Get("/games", registry.ListGamesHandler)
	app.Get("/games/:id", registry.GetGameHandler)
	app.Get("/games/:id/tournaments/:tid", registry.GetTournamentHandler)
	app.Get("/games/:id/tournaments/:tid/deposit-tokens", registry.ListDepositTokensHandler)
	app.Get("/games/:id/distributable-tokens", registry.ListDistributableTokensHandler)
	app.Get("/addresses/:role", addresses.GetAddressHandler)

	// Mutating routes need a resolved caller address.
	secured := app.Group("/", middleware.CallerContextMiddleware())

	secured.Post("/games", registry.AddGameHandler)
	secured.Delete("/games/:id", registry.RemoveGameHandler)
	secured.Put("/games/:id/creator", registry.UpdateGameCreatorHandler)
	secured.Put("/games/:id/base-creator-fee", registry.UpdateBaseGameCreatorFeeHandler)

	secured.Post("/games/:id/tournaments", registry.CreateTournamentHandler)
	secured.Post("/games/:id/tournaments/paid", registry.CreateTournamentPaidHandler)
	secured.Put("/games/:id/tournaments/:tid/deposit-token", registry.UpdateDepositTokenHandler)
	secured.Put("/games/:id/distributable-token", registry.UpdateDistributableTokenHandler)

	secured.Put("/registry/platform-fee", registry.UpdatePlatformFeeHandler)
	secured.Put("/addresses/:role", addresses.SetAddressHandler)
}
