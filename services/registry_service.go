// services/registry_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tournament-escrow-system/models"
	"tournament-escrow-system/utils"
)

// GameRegistryService owns the game catalog: game metadata, per-tournament
// fee configuration and the two dynamic allow-lists (deposit tokens per
// tournament, distributable assets per game). Escrow is consulted for the
// atomic prize-seeding path of user-initiated tournament creation.
type GameRegistryService struct {
	DB        *gorm.DB
	Addresses *AddressBookService
	Escrow    *EscrowService
}

func NewGameRegistryService(db *gorm.DB, addresses *AddressBookService) *GameRegistryService {
	return &GameRegistryService{DB: db, Addresses: addresses}
}

// TournamentSeed is the optional initial funding pushed into the escrow when a
// paying user creates a tournament. Either prize leg may be empty.
type TournamentSeed struct {
	DepositToken  string   `json:"deposit_token"`
	DepositAmount int64    `json:"deposit_amount"`
	PrizeToken    string   `json:"prize_token"`
	PrizeAmount   int64    `json:"prize_amount"`
	NFTAddress    string   `json:"nft_address"`
	NFTType       string   `json:"nft_type"`
	NFTTokenIDs   []string `json:"nft_token_ids"`
	NFTAmounts    []int64  `json:"nft_amounts"`
}

func (s *GameRegistryService) platformFee(tx *gorm.DB) (models.PlatformFee, error) {
	var fee models.PlatformFee
	err := tx.First(&fee, "component = ?", models.FeeComponentRegistry).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fee, err
	}
	fee.Component = models.FeeComponentRegistry
	return fee, nil
}

// AddGame registers a new game and returns its id. Owner-only.
func (s *GameRegistryService) AddGame(caller, name, creator string, baseFee int64) (uint, error) {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("%w: game name must not be empty", ErrValidation)
	}
	creatorAddr, err := utils.NormalizeAddress(creator)
	if err != nil || utils.IsZeroAddress(creatorAddr) {
		return 0, fmt.Errorf("%w: game creator must be a non-zero address", ErrValidation)
	}
	if baseFee < 0 {
		return 0, fmt.Errorf("%w: base creator fee must not be negative", ErrValidation)
	}

	var gid uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		fee, err := s.platformFee(tx)
		if err != nil {
			return err
		}
		if fee.FeePermille+baseFee >= models.FeeDenominator {
			return fmt.Errorf("%w: platform fee %d + base creator fee %d reaches 100%%", ErrValidation, fee.FeePermille, baseFee)
		}

		// Game ids are dense and never reused, so the next id is the count.
		var count int64
		if err := tx.Model(&models.Game{}).Count(&count).Error; err != nil {
			return err
		}
		gid = uint(count)

		return tx.Create(&models.Game{
			ID:             gid,
			Name:           name,
			Slug:           slug.Make(name),
			Creator:        creatorAddr,
			BaseCreatorFee: baseFee,
		}).Error
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[REGISTRY] game %d (%s) added, creator=%s baseFee=%d‰", gid, name, creatorAddr, baseFee)
	return gid, nil
}

// RemoveGame marks a game deprecated. The id stays queryable but becomes
// invalid for new tournaments and deposits. Owner-only, terminal.
func (s *GameRegistryService) RemoveGame(caller string, gid uint) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		game, err := s.gameForUpdate(tx, gid)
		if err != nil {
			return err
		}
		if game.Deprecated {
			return fmt.Errorf("%w: game %d is already deprecated", ErrValidation, gid)
		}
		return tx.Model(&models.Game{}).Where("id = ?", gid).Update("deprecated", true).Error
	})
}

// UpdateGameCreator hands the creator capability to a new address. Callable
// only by the current creator, not the owner.
func (s *GameRegistryService) UpdateGameCreator(caller string, gid uint, newCreator string) error {
	creatorAddr, err := utils.NormalizeAddress(newCreator)
	if err != nil || utils.IsZeroAddress(creatorAddr) {
		return fmt.Errorf("%w: new creator must be a non-zero address", ErrValidation)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		game, err := s.gameForUpdate(tx, gid)
		if err != nil {
			return err
		}
		if caller != game.Creator {
			return fmt.Errorf("%w: only the current game creator may transfer the creator role", ErrUnauthorized)
		}
		return tx.Model(&models.Game{}).Where("id = ?", gid).Update("creator", creatorAddr).Error
	})
}

// UpdateBaseGameCreatorFee changes the base fee used for future tournaments.
// Owner-only; past tournaments keep their applied fee.
func (s *GameRegistryService) UpdateBaseGameCreatorFee(caller string, gid uint, fee int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	if fee < 0 {
		return fmt.Errorf("%w: base creator fee must not be negative", ErrValidation)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.gameForUpdate(tx, gid); err != nil {
			return err
		}
		platform, err := s.platformFee(tx)
		if err != nil {
			return err
		}
		if platform.FeePermille+fee >= models.FeeDenominator {
			return fmt.Errorf("%w: platform fee %d + base creator fee %d reaches 100%%", ErrValidation, platform.FeePermille, fee)
		}
		return tx.Model(&models.Game{}).Where("id = ?", gid).Update("base_creator_fee", fee).Error
	})
}

// CreateTournament is the owner-initiated variant: no payment, no seeding.
func (s *GameRegistryService) CreateTournament(caller string, gid uint, name string, proposedFee, tournamentFee int64) (uint, error) {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return 0, err
	}
	var tid uint
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		tid, err = s.createTournamentTx(tx, caller, gid, name, proposedFee, tournamentFee)
		return err
	})
	return tid, err
}

// CreateTournamentPaid is the user-initiated variant: the caller pays the flat
// creation fee to the platform fee recipient, and the tournament, its deposit
// requirement and its initial prize pool are committed in one transaction so a
// tournament can never be listed without its advertised prize actually held in
// escrow.
func (s *GameRegistryService) CreateTournamentPaid(caller string, gid uint, name string, proposedFee, tournamentFee int64, seed TournamentSeed) (uint, error) {
	var tid uint
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		platform, err := s.platformFee(tx)
		if err != nil {
			return err
		}
		if platform.TournamentCreationFee > 0 {
			if platform.Recipient == "" {
				return fmt.Errorf("%w: tournament creation fee configured without a recipient", ErrPolicy)
			}
			if err := s.Escrow.Vault.Debit(tx, caller, platform.Recipient, platform.FeeToken, platform.TournamentCreationFee); err != nil {
				return err
			}
		}

		tid, err = s.createTournamentTx(tx, caller, gid, name, proposedFee, tournamentFee)
		if err != nil {
			return err
		}

		if seed.DepositToken != "" {
			token, err := utils.NormalizeAddress(seed.DepositToken)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if seed.DepositAmount <= 0 {
				return fmt.Errorf("%w: seed deposit amount must be positive", ErrValidation)
			}
			if err := s.setDepositTokenTx(tx, gid, tid, token, seed.DepositAmount); err != nil {
				return err
			}
		}
		if seed.PrizeToken != "" {
			token, err := utils.NormalizeAddress(seed.PrizeToken)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if err := s.Escrow.DepositPrizeTx(tx, caller, gid, tid, token, seed.PrizeAmount); err != nil {
				return err
			}
		}
		if seed.NFTAddress != "" {
			nft, err := utils.NormalizeAddress(seed.NFTAddress)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if err := s.Escrow.DepositNFTPrizeTx(tx, caller, gid, tid, nft, seed.NFTType, seed.NFTTokenIDs, seed.NFTAmounts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[REGISTRY] tournament %d/%d created by %s", gid, tid, caller)
	return tid, nil
}

func (s *GameRegistryService) createTournamentTx(tx *gorm.DB, creator string, gid uint, name string, proposedFee, tournamentFee int64) (uint, error) {
	game, err := s.gameForUpdate(tx, gid)
	if err != nil {
		return 0, err
	}
	if game.Deprecated {
		return 0, fmt.Errorf("%w: game %d is deprecated", ErrPolicy, gid)
	}
	if proposedFee < 0 || tournamentFee < 0 {
		return 0, fmt.Errorf("%w: fees must not be negative", ErrValidation)
	}

	appliedFee := proposedFee
	if appliedFee == 0 {
		appliedFee = game.BaseCreatorFee
	}
	if appliedFee < game.BaseCreatorFee {
		return 0, fmt.Errorf("%w: proposed creator fee %d is below the game's base fee %d", ErrValidation, appliedFee, game.BaseCreatorFee)
	}

	platform, err := s.platformFee(tx)
	if err != nil {
		return 0, err
	}
	if platform.FeePermille+appliedFee+tournamentFee >= models.FeeDenominator {
		return 0, fmt.Errorf("%w: combined fees reach 100%%", ErrValidation)
	}

	var count int64
	if err := tx.Model(&models.Tournament{}).Where("game_id = ?", gid).Count(&count).Error; err != nil {
		return 0, err
	}
	tid := uint(count)

	if err := tx.Create(&models.Tournament{
		GameID:               gid,
		ID:                   tid,
		Name:                 name,
		Creator:              creator,
		AppliedCreatorFee:    appliedFee,
		TournamentCreatorFee: tournamentFee,
	}).Error; err != nil {
		return 0, err
	}
	return tid, nil
}

// UpdateDepositTokenAmount sets the required deposit amount for a token in one
// tournament. Amount zero removes the token from the enabled set, a positive
// amount (re-)adds it. Owner-only.
func (s *GameRegistryService) UpdateDepositTokenAmount(caller string, gid, tid uint, token string, amount int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if amount < 0 {
		return fmt.Errorf("%w: deposit amount must not be negative", ErrValidation)
	}
	if err := checkLedgerAmount(amount); err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.tournament(tx, gid, tid); err != nil {
			return err
		}
		return s.setDepositTokenTx(tx, gid, tid, tokenAddr, amount)
	})
}

func (s *GameRegistryService) setDepositTokenTx(tx *gorm.DB, gid, tid uint, token string, amount int64) error {
	if amount == 0 {
		return tx.Where("game_id = ? AND tournament_id = ? AND token = ?", gid, tid, token).
			Delete(&models.DepositToken{}).Error
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "tournament_id"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&models.DepositToken{
		GameID:       gid,
		TournamentID: tid,
		Token:        token,
		Amount:       amount,
	}).Error
}

// UpdateDistributableToken enables or disables a token/NFT contract as a prize
// asset for a game. Owner-only, scoped to the game.
func (s *GameRegistryService) UpdateDistributableToken(caller string, gid uint, token string, enabled bool) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.game(tx, gid); err != nil {
			return err
		}
		if !enabled {
			return tx.Where("game_id = ? AND token = ?", gid, tokenAddr).
				Delete(&models.DistributableToken{}).Error
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.DistributableToken{GameID: gid, Token: tokenAddr}).Error
	})
}

// UpdatePlatformFee sets the registry's own platform-fee copy: the permille
// used in ceiling checks, the recipient/token of the flat tournament-creation
// fee, and that fee itself. Owner-only.
func (s *GameRegistryService) UpdatePlatformFee(caller, recipient, feeToken string, permille, creationFee int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	if permille < 0 || permille > models.FeeDenominator {
		return fmt.Errorf("%w: platform fee must be within [0, %d] permille", ErrValidation, models.FeeDenominator)
	}
	if creationFee < 0 {
		return fmt.Errorf("%w: tournament creation fee must not be negative", ErrValidation)
	}

	normalized := ""
	if recipient != "" {
		var err error
		normalized, err = utils.NormalizeAddress(recipient)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if (permille > 0 || creationFee > 0) && (normalized == "" || utils.IsZeroAddress(normalized)) {
		return fmt.Errorf("%w: fee recipient must be non-zero while a fee is configured", ErrValidation)
	}

	token := ""
	if feeToken != "" {
		var err error
		token, err = utils.NormalizeAddress(feeToken)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		// Raising the platform fee must not push any live game past the
		// ceiling; offending base fees have to be lowered first.
		var maxBase int64
		if err := tx.Model(&models.Game{}).Where("deprecated = ?", false).
			Select("COALESCE(MAX(base_creator_fee), 0)").Scan(&maxBase).Error; err != nil {
			return err
		}
		if permille+maxBase >= models.FeeDenominator {
			return fmt.Errorf("%w: platform fee %d + highest base creator fee %d reaches 100%%", ErrValidation, permille, maxBase)
		}

		return tx.Save(&models.PlatformFee{
			Component:             models.FeeComponentRegistry,
			Recipient:             normalized,
			FeePermille:           permille,
			FeeToken:              token,
			TournamentCreationFee: creationFee,
		}).Error
	})
}

// --- Read accessors (side-effect free) ---

func (s *GameRegistryService) GetGame(gid uint) (*models.Game, error) {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", gid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %d", ErrNotFound, gid)
		}
		return nil, err
	}
	return &game, nil
}

func (s *GameRegistryService) GameCount() (int64, error) {
	var count int64
	err := s.DB.Model(&models.Game{}).Count(&count).Error
	return count, err
}

func (s *GameRegistryService) ListGames() ([]models.Game, error) {
	var games []models.Game
	err := s.DB.Order("id ASC").Find(&games).Error
	return games, err
}

func (s *GameRegistryService) GetTournament(gid, tid uint) (*models.Tournament, error) {
	return s.tournament(s.DB, gid, tid)
}

func (s *GameRegistryService) TournamentCount(gid uint) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Tournament{}).Where("game_id = ?", gid).Count(&count).Error
	return count, err
}

// DepositTokens enumerates the deposit-token requirements of one tournament.
func (s *GameRegistryService) DepositTokens(gid, tid uint) ([]models.DepositToken, error) {
	var tokens []models.DepositToken
	err := s.DB.Where("game_id = ? AND tournament_id = ?", gid, tid).Find(&tokens).Error
	return tokens, err
}

// DistributableTokens enumerates a game's prize allow-list.
func (s *GameRegistryService) DistributableTokens(gid uint) ([]models.DistributableToken, error) {
	var tokens []models.DistributableToken
	err := s.DB.Where("game_id = ?", gid).Find(&tokens).Error
	return tokens, err
}

// DepositAmountTx returns the configured deposit amount for a bucket, zero
// when the token is not enabled. Used by the escrow inside its deposit
// transaction.
func (s *GameRegistryService) DepositAmountTx(tx *gorm.DB, gid, tid uint, token string) (int64, error) {
	var dt models.DepositToken
	err := tx.Where("game_id = ? AND tournament_id = ? AND token = ?", gid, tid, token).First(&dt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return dt.Amount, nil
}

// IsDistributableTx reports whether token is on the game's prize allow-list.
func (s *GameRegistryService) IsDistributableTx(tx *gorm.DB, gid uint, token string) (bool, error) {
	var count int64
	err := tx.Model(&models.DistributableToken{}).
		Where("game_id = ? AND token = ?", gid, token).Count(&count).Error
	return count > 0, err
}

func (s *GameRegistryService) game(tx *gorm.DB, gid uint) (*models.Game, error) {
	var game models.Game
	if err := tx.First(&game, "id = ?", gid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %d", ErrNotFound, gid)
		}
		return nil, err
	}
	return &game, nil
}

func (s *GameRegistryService) gameForUpdate(tx *gorm.DB, gid uint) (*models.Game, error) {
	var game models.Game
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&game, "id = ?", gid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %d", ErrNotFound, gid)
		}
		return nil, err
	}
	return &game, nil
}

func (s *GameRegistryService) tournament(tx *gorm.DB, gid, tid uint) (*models.Tournament, error) {
	var t models.Tournament
	err := tx.Where("game_id = ? AND id = ?", gid, tid).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tournament %d/%d", ErrNotFound, gid, tid)
		}
		return nil, err
	}
	return &t, nil
}
