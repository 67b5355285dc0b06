// workers/vault_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tournament-escrow-system/models"
)

// VaultSyncClient pulls custody balance changes from the chain indexer and
// mirrors them into the local vault_balances table.
type VaultSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewVaultSyncClient(db *gorm.DB) *VaultSyncClient {
	baseURL := os.Getenv("CUSTODY_INDEXER_URL")
	if baseURL == "" {
		log.Fatal("CUSTODY_INDEXER_URL environment variable is required")
	}
	token := os.Getenv("ESCROW_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("ESCROW_SERVICE_TOKEN environment variable is required for vault sync")
	}

	return &VaultSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *VaultSyncClient) GetChangedBalances(ctx context.Context, since time.Time) ([]models.VaultBalance, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/balances", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call custody indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("custody indexer returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Balances []models.VaultBalance `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode custody indexer response: %w", err)
	}

	return response.Balances, nil
}

// SyncBalances applies custody snapshots to the live ledger. The escrow
// mutates the same vault_balances rows transactionally, so reports are never
// written over them directly: each report is diffed against the last applied
// snapshot in vault_mirrors and only that delta reaches the live row. Reports
// not newer than the applied snapshot are skipped. Returns the number of
// reports applied.
func SyncBalances(db *gorm.DB, balances []models.VaultBalance) (int, error) {
	applied := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, b := range balances {
			var mirror models.VaultMirror
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("holder = ? AND token = ? AND token_id = ?", b.Holder, b.Token, b.TokenID).
				First(&mirror).Error

			var prev int64
			known := err == nil
			if known {
				if !b.UpdatedAt.After(mirror.ReportedAt) {
					continue
				}
				prev = mirror.Amount
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			if delta := b.Amount - prev; delta != 0 {
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "holder"}, {Name: "token"}, {Name: "token_id"}},
					DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("vault_balances.amount + ?", delta)}),
				}).Create(&models.VaultBalance{
					Holder:  b.Holder,
					Token:   b.Token,
					TokenID: b.TokenID,
					Amount:  delta,
				}).Error; err != nil {
					return err
				}
			}

			if known {
				if err := tx.Model(&models.VaultMirror{}).
					Where("holder = ? AND token = ? AND token_id = ?", b.Holder, b.Token, b.TokenID).
					Updates(map[string]interface{}{"amount": b.Amount, "reported_at": b.UpdatedAt}).Error; err != nil {
					return err
				}
			} else if err := tx.Create(&models.VaultMirror{
				Holder:     b.Holder,
				Token:      b.Token,
				TokenID:    b.TokenID,
				Amount:     b.Amount,
				ReportedAt: b.UpdatedAt,
			}).Error; err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// PollVault mirrors changed custody balances into vault_balances on an
// interval. On a failed tick the sync window is not advanced, so the same
// batch is retried next tick.
func PollVault(ctx context.Context, client *VaultSyncClient, pollInterval time.Duration) {
	log.Println("Starting vault balance polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Vault polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()
			log.Printf("Polling for balance changes since %s...", lastSyncTime.Format(time.RFC3339))

			balances, err := client.GetChangedBalances(ctx, lastSyncTime)
			if err != nil {
				log.Printf("[VAULT-SYNC] error polling balances: %v", err)
				continue
			}
			if len(balances) == 0 {
				continue
			}

			applied, err := SyncBalances(client.DB, balances)
			if err != nil {
				log.Printf("[VAULT-SYNC] failed to apply %d report(s): %v", len(balances), err)
				continue
			}

			lastSyncTime = tickTime
			log.Printf("[VAULT-SYNC] applied %d of %d balance report(s).", applied, len(balances))
		}
	}
}
