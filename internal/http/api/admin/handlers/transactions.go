package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// TransactionHandler handles admin operations on ledger entries.
type TransactionHandler struct {
	ledger *ledger.Orchestrator
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(o *ledger.Orchestrator) *TransactionHandler {
	return &TransactionHandler{ledger: o}
}

// reverseRequest is the optional body of POST /transactions/:id/reverse.
type reverseRequest struct {
	Reason string `json:"reason"`
}

// Reverse writes a compensating entry for :id.
func (h *TransactionHandler) Reverse(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	var body reverseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil && !errors.Is(errBind, io.EOF) {
		httpx.InvalidJSON(c)
		return
	}
	res, err := h.ledger.ReverseTransaction(c.Request.Context(), caller, ledger.ReverseRequest{
		TransactionID: c.Param("id"),
		Reason:        body.Reason,
	})
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
