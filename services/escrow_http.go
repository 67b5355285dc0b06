// services/escrow_http.go
package services

import (
	"github.com/gofiber/fiber/v2"
)

func (s *EscrowService) DepositHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.Deposit(caller(c), gid, tid, req.Token); err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "deposit accepted"})
}

func (s *EscrowService) DepositPrizeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		Depositor string `json:"depositor"`
		Token     string `json:"token"`
		Amount    int64  `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.DepositPrize(caller(c), req.Depositor, gid, tid, req.Token, req.Amount); err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "prize deposited"})
}

func (s *EscrowService) WithdrawPrizeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		To     string `json:"to"`
		Token  string `json:"token"`
		Amount int64  `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.WithdrawPrize(caller(c), req.To, gid, tid, req.Token, req.Amount); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "prize withdrawn"})
}

func (s *EscrowService) DepositNFTPrizeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		From       string   `json:"from"`
		NFTAddress string   `json:"nft_address"`
		NFTType    string   `json:"nft_type"`
		TokenIDs   []string `json:"token_ids"`
		Amounts    []int64  `json:"amounts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.DepositNFTPrize(caller(c), req.From, gid, tid, req.NFTAddress, req.NFTType, req.TokenIDs, req.Amounts); err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "NFT prize deposited"})
}

func (s *EscrowService) WithdrawNFTPrizeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		To         string   `json:"to"`
		NFTAddress string   `json:"nft_address"`
		NFTType    string   `json:"nft_type"`
		TokenIDs   []string `json:"token_ids"`
		Amounts    []int64  `json:"amounts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.WithdrawNFTPrize(caller(c), req.To, gid, tid, req.NFTAddress, req.NFTType, req.TokenIDs, req.Amounts); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "NFT prize withdrawn"})
}

func (s *EscrowService) DistributePrizeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		Winners []string `json:"winners"`
		Token   string   `json:"token"`
		Amounts []int64  `json:"amounts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.DistributePrize(caller(c), gid, tid, req.Winners, req.Token, req.Amounts); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "prizes distributed"})
}

func (s *EscrowService) DistributeNFTPrizeHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	var req struct {
		Winners    []string `json:"winners"`
		NFTAddress string   `json:"nft_address"`
		NFTType    string   `json:"nft_type"`
		TokenIDs   []string `json:"token_ids"`
		Amounts    []int64  `json:"amounts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.DistributeNFTPrize(caller(c), gid, tid, req.Winners, req.NFTAddress, req.NFTType, req.TokenIDs, req.Amounts); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "NFT prizes distributed"})
}

func (s *EscrowService) SweepHandler(c *fiber.Ctx) error {
	var req struct {
		Tokens      []string `json:"tokens"`
		Amounts     []int64  `json:"amounts"`
		Beneficiary string   `json:"beneficiary"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.Sweep(caller(c), req.Tokens, req.Amounts, req.Beneficiary); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "sweep executed"})
}

func (s *EscrowService) UpdatePlatformFeeHandler(c *fiber.Ctx) error {
	var req struct {
		Recipient   string `json:"recipient"`
		FeePermille int64  `json:"fee_permille"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.UpdatePlatformFee(caller(c), req.Recipient, req.FeePermille); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "escrow platform fee updated"})
}

func (s *EscrowService) PauseHandler(c *fiber.Ctx) error {
	if err := s.Pause(caller(c)); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "escrow paused"})
}

func (s *EscrowService) UnpauseHandler(c *fiber.Ctx) error {
	if err := s.Unpause(caller(c)); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "escrow unpaused"})
}

func (s *EscrowService) EnterRecoveryModeHandler(c *fiber.Ctx) error {
	if err := s.EnterRecoveryMode(caller(c)); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "recovery mode entered"})
}

func (s *EscrowService) ExitRecoveryModeHandler(c *fiber.Ctx) error {
	if err := s.ExitRecoveryMode(caller(c)); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "recovery mode exited"})
}

func (s *EscrowService) GetBucketHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	tid, ok := paramID(c, "tid")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id", "code": "validation"})
	}
	token := c.Query("token")
	bucket, err := s.GetBucket(gid, tid, token)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(bucket)
}

func (s *EscrowService) AuditHandler(c *fiber.Ctx) error {
	report, err := s.AuditSolvency()
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(report)
}

func (s *ClaimService) ClaimHandler(c *fiber.Ctx) error {
	gid, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game id", "code": "validation"})
	}
	var req struct {
		Winner    string `json:"winner"`
		Token     string `json:"token"`
		Amount    int64  `json:"amount"`
		Nonce     uint64 `json:"nonce"`
		Signature string `json:"signature"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "validation"})
	}
	if err := s.Claim(caller(c), gid, req.Winner, req.Token, req.Amount, req.Nonce, req.Signature); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"message": "claim paid"})
}
