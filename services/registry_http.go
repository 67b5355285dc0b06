// services/registry_http.go
package services

import (
	"github.com/gofiber/fiber/v2"
)

// Fiber handlers for the registry operations. Mutating routes sit behind the
// caller-context middleware, so caller_address is always present here.

func caller(c *fiber.Ctx) string {
	addr, _ := c.Locals("caller_address").(string)
	return addr
}

func paramID(c *fiber.Ctx, name string) (uint, bool) {
	v, err := c.ParamsInt(name)
	if err != nil || v < 0 {
		return 0, false
	}
	return uint(v), true
}

func (s *GameRegistryService) AddGameHandler(c *fiber.Ctx) error {
	var req struct {
		Name           string `json:"name"`
		Creator        string `json:"creator"`
		BaseCreatorFee int64  `json:"base_creator_fee"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}

	gid, err := s.AddGame(caller(c), req.Name, req.Creator, req.BaseCreatorFee)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"game_id": gid})
}

func (s *GameRegistryService) RemoveGameHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	if err := s.RemoveGame(caller(c), gid); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "game deprecated", "game_id": gid})
}

func (s *GameRegistryService) UpdateGameCreatorHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	var req struct {
		NewCreator string `json:"new_creator"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.UpdateGameCreator(caller(c), gid, req.NewCreator); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "game creator updated"})
}

func (s *GameRegistryService) UpdateBaseGameCreatorFeeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	var req struct {
		Fee int64 `json:"fee"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.UpdateBaseGameCreatorFee(caller(c), gid, req.Fee); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "base creator fee updated"})
}

func (s *GameRegistryService) CreateTournamentHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	var req struct {
		Name                 string `json:"name"`
		ProposedCreatorFee   int64  `json:"proposed_creator_fee"`
		TournamentCreatorFee int64  `json:"tournament_creator_fee"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	tid, err := s.CreateTournament(caller(c), gid, req.Name, req.ProposedCreatorFee, req.TournamentCreatorFee)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"game_id": gid, "tournament_id": tid})
}

func (s *GameRegistryService) CreateTournamentPaidHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	var req struct {
		Name                 string         `json:"name"`
		ProposedCreatorFee   int64          `json:"proposed_creator_fee"`
		TournamentCreatorFee int64          `json:"tournament_creator_fee"`
		Seed                 TournamentSeed `json:"seed"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	tid, err := s.CreateTournamentPaid(caller(c), gid, req.Name, req.ProposedCreatorFee, req.TournamentCreatorFee, req.Seed)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"game_id": gid, "tournament_id": tid})
}

func (s *GameRegistryService) UpdateDepositTokenHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		Token  string `json:"token"`
		Amount int64  `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.UpdateDepositTokenAmount(caller(c), gid, tid, req.Token, req.Amount); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "deposit token updated"})
}

func (s *GameRegistryService) UpdateDistributableTokenHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	var req struct {
		Token   string `json:"token"`
		Enabled bool   `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.UpdateDistributableToken(caller(c), gid, req.Token, req.Enabled); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "distributable token updated"})
}

func (s *GameRegistryService) UpdatePlatformFeeHandler(c *fiber.Ctx) error {
	var req struct {
		Recipient             string `json:"recipient"`
		FeeToken              string `json:"fee_token"`
		FeePermille           int64  `json:"fee_permille"`
		TournamentCreationFee int64  `json:"tournament_creation_fee"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.UpdatePlatformFee(caller(c), req.Recipient, req.FeeToken, req.FeePermille, req.TournamentCreationFee); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "registry platform fee updated"})
}

// --- Read accessors ---

func (s *GameRegistryService) GetGameHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	game, err := s.GetGame(gid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(game)
}

func (s *GameRegistryService) ListGamesHandler(c *fiber.Ctx) error {
	games, err := s.ListGames()
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(games)
}

func (s *GameRegistryService) GetTournamentHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	t, err := s.GetTournament(gid, tid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(t)
}

func (s *GameRegistryService) ListDepositTokensHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	tokens, err := s.DepositTokens(gid, tid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(tokens)
}

func (s *GameRegistryService) ListDistributableTokensHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tokens, err := s.DistributableTokens(gid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(tokens)
}

// --- Address book ---

func (s *AddressBookService) SetAddressHandler(c *fiber.Ctx) error {
	role := c.Params("role")
	var req struct {
		Address string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.Set(caller(c), role, req.Address); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "address registered", "role": role})
}

func (s *AddressBookService) GetAddressHandler(c *fiber.Ctx) error {
	role := c.Params("role")
	addr, err := s.Resolve(role)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"role": role, "address": addr})
}
