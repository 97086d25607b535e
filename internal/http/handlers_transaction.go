package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"khata/internal/core"
	"khata/internal/ledger"
)

// transactionRequest is the write payload. Amount is a decimal string
// ("125.50"); clients never send cents directly.
type transactionRequest struct {
	CustomerID  int64  `json:"customer_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"` // YYYY-MM-DD
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid date %q", req.Date)
	}

	tx := core.Transaction{
		CustomerID:  req.CustomerID,
		Type:        core.EntryType(req.Type),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(req.Description),
		Date:        date.UTC(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.service.ListTransactions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.service.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction created",
		"transaction_id", created.ID,
		"customer_id", created.CustomerID,
		"entry_type", created.Type,
		"amount_cents", created.Amount.Cents)

	writeJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := s.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req transactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tx.ID = id

	updated, err := s.service.UpdateTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction updated",
		"transaction_id", updated.ID,
		"customer_id", updated.CustomerID)

	writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted", "transaction_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransactionsByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.service.ListTransactionsByCustomer(r.Context(), customerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, txs)
}

func (s *Server) handleTransactionsByDateRange(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if dr == nil {
		writeError(w, r, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	txs, err := s.service.ListTransactionsByDateRange(r.Context(), *dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, txs)
}

func (s *Server) handleTransactionsByCustomerAndDateRange(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dr, err := parseDateRangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if dr == nil {
		writeError(w, r, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	txs, err := s.service.ListTransactionsByCustomerAndDateRange(r.Context(), customerID, *dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, txs)
}

// handleLedgerView serves the running-balance projection. customer_id=0 (or
// absent) selects the whole book.
func (s *Server) handleLedgerView(w http.ResponseWriter, r *http.Request) {
	customerID, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dr, err := parseDateRangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.service.View(r.Context(), customerID, dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleTransactionsReport(w http.ResponseWriter, r *http.Request) {
	customerID, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dr, err := parseDateRangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s.xlsx"`, time.Now().UTC().Format("2006-01-02")))

	if err := s.reports.WriteTransactionsReport(r.Context(), w, customerID, dr); err != nil {
		slog.ErrorContext(r.Context(), "Failed to build transactions report", "error", err)
		// Headers are already out; the truncated stream is all we can signal.
		return
	}
}

func scopeFromQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("customer_id")
	if raw == "" {
		return ledger.AllCustomers, nil
	}
	id, err := pathIDValue(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid customer_id: %q", raw)
	}
	return id, nil
}
