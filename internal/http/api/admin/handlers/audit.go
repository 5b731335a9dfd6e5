package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// AuditHandler serves the audit chain.
type AuditHandler struct {
	ledger *ledger.Orchestrator
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(o *ledger.Orchestrator) *AuditHandler {
	return &AuditHandler{ledger: o}
}

// Trail lists audit entries in chain order.
func (h *AuditHandler) Trail(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	filter := audit.Filter{
		ActorID:    strings.TrimSpace(c.Query("actor_id")),
		ActionType: strings.TrimSpace(c.Query("action_type")),
		EntityID:   strings.TrimSpace(c.Query("entity_id")),
		Source:     strings.TrimSpace(c.Query("source")),
	}
	var errTime error
	if filter.From, errTime = parseTimeQuery(c, "from"); errTime != nil {
		httpx.WriteError(c, errTime)
		return
	}
	if filter.To, errTime = parseTimeQuery(c, "to"); errTime != nil {
		httpx.WriteError(c, errTime)
		return
	}

	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.GetAuditTrail(c.Request.Context(), caller, filter, page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatAuditEntries(rows), total, page, limit))
}

// Verify replays the whole chain and reports every integrity problem.
func (h *AuditHandler) Verify(c *gin.Context) {
	report, err := h.ledger.VerifyAuditIntegrity(c.Request.Context())
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// parseTimeQuery reads an RFC3339 query parameter.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.ErrInvalidInput.WithMessage("%s must be an RFC3339 timestamp", name)
	}
	t = t.UTC()
	return &t, nil
}
