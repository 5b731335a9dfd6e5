package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// verifyBatchSize bounds how many entries are loaded per query during replay.
const verifyBatchSize = 500

// Problem kinds reported by Verify.
const (
	ProblemHashMismatch = "hash_mismatch"
	ProblemBrokenLink   = "broken_link"
	ProblemSequenceGap  = "sequence_gap"
	ProblemTailMismatch = "tail_mismatch"
	ProblemUnhashable   = "unhashable"
)

// Problem identifies one integrity failure.
type Problem struct {
	EntryID  string `json:"entry_id,omitempty"`
	Sequence uint64 `json:"sequence"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
}

// Report is the outcome of a full chain replay.
type Report struct {
	Valid     bool      `json:"valid"`
	Entries   int64     `json:"entries"`
	Errors    []Problem `json:"errors"`
	CheckedAt time.Time `json:"checked_at"`
}

// Verify replays the chain in sequence order, recomputing every hash and checking each link
// against the prior entry's stored hash.
func (l *Log) Verify(ctx context.Context) (*Report, error) {
	report := &Report{Errors: []Problem{}, CheckedAt: l.clock.Now()}
	conn := l.db.WithContext(ctx)

	var (
		lastSeq  uint64
		prevHash string
		expected uint64 = 1
	)
	for {
		var batch []models.AuditEntry
		if errFind := conn.Where("sequence > ?", lastSeq).
			Order("sequence ASC").
			Limit(verifyBatchSize).
			Find(&batch).Error; errFind != nil {
			return nil, apperr.Internal(errFind)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			e := &batch[i]
			report.Entries++
			if e.Sequence != expected {
				report.Errors = append(report.Errors, Problem{
					EntryID:  e.ID,
					Sequence: e.Sequence,
					Kind:     ProblemSequenceGap,
					Detail:   fmt.Sprintf("expected sequence %d", expected),
				})
			}
			if e.PreviousHash != prevHash {
				report.Errors = append(report.Errors, Problem{
					EntryID:  e.ID,
					Sequence: e.Sequence,
					Kind:     ProblemBrokenLink,
					Detail:   fmt.Sprintf("previous hash %q does not match prior entry hash %q", e.PreviousHash, prevHash),
				})
			}
			recomputed, errHash := ComputeHash(e)
			switch {
			case errHash != nil:
				report.Errors = append(report.Errors, Problem{
					EntryID:  e.ID,
					Sequence: e.Sequence,
					Kind:     ProblemUnhashable,
					Detail:   errHash.Error(),
				})
			case recomputed != e.Hash:
				report.Errors = append(report.Errors, Problem{
					EntryID:  e.ID,
					Sequence: e.Sequence,
					Kind:     ProblemHashMismatch,
					Detail:   "stored hash does not match recomputed hash",
				})
			}

			prevHash = e.Hash
			lastSeq = e.Sequence
			expected = e.Sequence + 1
		}
		if len(batch) < verifyBatchSize {
			break
		}
	}

	var tail models.AuditChainTail
	errTail := conn.Where("id = ?", models.AuditChainTailID).First(&tail).Error
	switch {
	case errTail != nil && !errors.Is(errTail, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(errTail)
	case errTail != nil:
		if report.Entries > 0 {
			report.Errors = append(report.Errors, Problem{Kind: ProblemTailMismatch, Detail: "chain tail record is missing"})
		}
	case tail.Sequence != lastSeq || tail.Hash != prevHash:
		report.Errors = append(report.Errors, Problem{
			Sequence: tail.Sequence,
			Kind:     ProblemTailMismatch,
			Detail:   fmt.Sprintf("tail points at sequence %d, last entry is %d", tail.Sequence, lastSeq),
		})
	}

	report.Valid = len(report.Errors) == 0
	if !report.Valid {
		log.WithFields(log.Fields{
			"entries":  report.Entries,
			"problems": len(report.Errors),
		}).Warn("audit: chain verification failed")
	}
	return report, nil
}
