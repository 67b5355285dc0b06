// services/scheduler.go
package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"tournament-escrow-system/models"
	"tournament-escrow-system/utils"
)

// AuditReport is one pass over every bucket, checking the solvency invariants
// off the hot path. Violations mean a bug or tampering, never normal
// operation.
type AuditReport struct {
	ID           string    `json:"id"`
	RanAt        time.Time `json:"ran_at"`
	TokenBuckets int       `json:"token_buckets"`
	NFTBuckets   int       `json:"nft_buckets"`
	Violations   []string  `json:"violations"`
}

// StartSolvencyAuditScheduler re-checks every bucket on an interval and, when
// archiving is configured, uploads the JSON report to R2.
func (s *EscrowService) StartSolvencyAuditScheduler(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			report, err := s.AuditSolvency()
			if err != nil {
				log.Printf("[AUDIT] audit pass failed: %v", err)
				return
			}
			if len(report.Violations) > 0 {
				log.Printf("[AUDIT] %d solvency violation(s) found: %v", len(report.Violations), report.Violations)
			}

			if utils.ArchiveEnabled() {
				payload, err := json.Marshal(report)
				if err != nil {
					log.Printf("[AUDIT] failed to encode report: %v", err)
					return
				}
				key := "audits/" + report.RanAt.UTC().Format("2006-01-02") + "/" + report.ID + ".json"
				if url, err := s.archive(key, payload); err != nil {
					log.Printf("[AUDIT] failed to archive report: %v", err)
				} else {
					log.Printf("[AUDIT] report archived at %s", url)
				}
			}
		}),
	)
}

func (s *EscrowService) archive(key string, payload []byte) (string, error) {
	return utils.UploadAuditSnapshot(key, payload)
}

// AuditSolvency scans every fungible and NFT bucket and reports any that
// violate their invariant.
func (s *EscrowService) AuditSolvency() (*AuditReport, error) {
	report := &AuditReport{
		ID:    uuid.NewString(),
		RanAt: time.Now(),
	}

	var buckets []models.TokenBucket
	if err := s.DB.Find(&buckets).Error; err != nil {
		return nil, err
	}
	report.TokenBuckets = len(buckets)
	for _, b := range buckets {
		outflow := b.TotalPrizeDistribution + b.TotalPrizeFee
		inflow := b.TotalUserDeposit + b.TotalPrizeDeposit
		if outflow > inflow {
			report.Violations = append(report.Violations,
				b.Token+": bucket overdrawn")
		}
	}

	var nftBuckets []models.NFTBucket
	if err := s.DB.Find(&nftBuckets).Error; err != nil {
		return nil, err
	}
	report.NFTBuckets = len(nftBuckets)
	for _, b := range nftBuckets {
		if b.Distributed > b.Deposited {
			report.Violations = append(report.Violations,
				b.NFTAddress+"/"+b.TokenID+": distributed exceeds deposited")
		}
		if b.NFTType == models.NFTTypeUnique && (b.Deposited > 1 || b.Distributed > 1) {
			report.Violations = append(report.Violations,
				b.NFTAddress+"/"+b.TokenID+": unique id carries more than one unit")
		}
	}

	return report, nil
}
