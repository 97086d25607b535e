package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"khata/internal/core"
)

type customerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (req customerRequest) toCustomer() (core.Customer, error) {
	c := core.Customer{
		Name:    sanitizeInput(req.Name),
		Phone:   sanitizeInput(req.Phone),
		Address: sanitizeInput(req.Address),
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	return c, nil
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.service.ListCustomers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, customers)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := req.toCustomer()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.service.CreateCustomer(r.Context(), customer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Customer created",
		"customer_id", created.ID,
		"customer_name", created.Name)

	writeJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := s.service.GetCustomer(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, customer)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req customerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := req.toCustomer()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	customer.ID = id

	updated, err := s.service.UpdateCustomer(r.Context(), customer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Customer updated", "customer_id", updated.ID)
	writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.DeleteCustomer(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Customer deleted", "customer_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleCustomerBill streams the customer's printable bill as a workbook.
func (s *Server) handleCustomerBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dr, err := parseDateRangeQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Resolve the customer before committing to a file response so a bad ID
	// still gets a JSON 404.
	if _, err := s.service.GetCustomer(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bill-%d-%s.xlsx"`, id, time.Now().UTC().Format("2006-01-02")))

	if err := s.reports.WriteCustomerBill(r.Context(), w, id, dr); err != nil {
		slog.ErrorContext(r.Context(), "Failed to build customer bill", "error", err, "customer_id", id)
		return
	}
}
