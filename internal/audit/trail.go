package audit

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Trail paging bounds.
const (
	DefaultTrailLimit = 50
	MaxTrailLimit     = 200
)

// Filter narrows an audit trail query. Zero fields match everything.
type Filter struct {
	ActorID    string
	ActionType string
	EntityID   string
	Source     string
	From       *time.Time // Inclusive.
	To         *time.Time // Exclusive.
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if v := strings.TrimSpace(f.ActorID); v != "" {
		q = q.Where("actor_id = ?", v)
	}
	if v := strings.TrimSpace(f.ActionType); v != "" {
		q = q.Where("action_type = ?", v)
	}
	if v := strings.TrimSpace(f.EntityID); v != "" {
		q = q.Where("entity_id = ?", v)
	}
	if v := strings.TrimSpace(f.Source); v != "" {
		q = q.Where("source = ?", v)
	}
	if f.From != nil {
		q = q.Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: f.From.UTC()})
	}
	if f.To != nil {
		q = q.Where(clause.Lt{Column: clause.Column{Name: "timestamp"}, Value: f.To.UTC()})
	}
	return q
}

// Trail returns one page of entries matching f in chain order, plus the total match count.
// page is 1-based; limit is clamped to MaxTrailLimit.
func (l *Log) Trail(ctx context.Context, f Filter, page, limit int) ([]models.AuditEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultTrailLimit
	}
	if limit > MaxTrailLimit {
		limit = MaxTrailLimit
	}

	var total int64
	if errCount := f.apply(l.db.WithContext(ctx).Model(&models.AuditEntry{})).Count(&total).Error; errCount != nil {
		return nil, 0, apperr.Internal(errCount)
	}

	var rows []models.AuditEntry
	if errFind := f.apply(l.db.WithContext(ctx).Model(&models.AuditEntry{})).
		Order("sequence ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, 0, apperr.Internal(errFind)
	}
	return rows, total, nil
}
