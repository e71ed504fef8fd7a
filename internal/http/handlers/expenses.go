package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type expensePayload struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description *string   `json:"description,omitempty"`
	SpentAt     time.Time `json:"spentAt"`
}

type expenseRequest struct {
	Category    string   `json:"category"`
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
	SpentAt     string   `json:"spentAt"`
}

func (h *Handler) ExpenseList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	query := `
		select id, category, amount, description, spent_at
		from expenses
		where outlet_id = $1
	`
	args := []any{*authCtx.OutletID}
	if from := strings.TrimSpace(r.URL.Query().Get("from")); from != "" {
		if day, err := time.Parse("2006-01-02", from); err == nil {
			args = append(args, day)
			query += ` and spent_at >= $` + strconv.Itoa(len(args))
		}
	}
	if to := strings.TrimSpace(r.URL.Query().Get("to")); to != "" {
		if day, err := time.Parse("2006-01-02", to); err == nil {
			args = append(args, day.AddDate(0, 0, 1))
			query += ` and spent_at < $` + strconv.Itoa(len(args))
		}
	}
	query += ` order by spent_at desc limit 500`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("expense list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expenses")
		return
	}
	defer rows.Close()

	expenses := []expensePayload{}
	var total float64
	for rows.Next() {
		var (
			e           expensePayload
			amount      pgtype.Numeric
			description pgtype.Text
		)
		if err := rows.Scan(&e.ID, &e.Category, &amount, &description, &e.SpentAt); err != nil {
			h.Logger.Error("expense list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expenses")
			return
		}
		e.Amount = utils.NumericToFloat64(amount)
		if description.Valid {
			e.Description = &description.String
		}
		total += e.Amount
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("expense list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expenses")
		return
	}

	response.Success(w, map[string]any{
		"expenses":    expenses,
		"totalAmount": billing.Round2(total),
	})
}

func (h *Handler) ExpenseCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	var body expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.Amount == nil || *body.Amount <= 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero")
		return
	}

	spentAt := time.Now()
	if raw := strings.TrimSpace(body.SpentAt); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "spentAt must be YYYY-MM-DD")
			return
		}
		spentAt = parsed
	}

	var id int64
	err := h.DB.QueryRow(ctx, `
		insert into expenses (outlet_id, category, amount, description, spent_at, recorded_by_user_id)
		values ($1, $2, $3, $4, $5, $6)
		returning id
	`, *authCtx.OutletID, defaultString(body.Category, "General"), billing.Round2(*body.Amount),
		nilIfEmpty(body.Description), spentAt, authCtx.UserID).Scan(&id)
	if err != nil {
		h.Logger.Error("expense create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record expense")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": id}})
}

func (h *Handler) ExpenseDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	expenseID, err := readPathInt64(r, "expenseId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid expense id")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		delete from expenses where id = $1 and outlet_id = $2
	`, expenseID, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("expense delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete expense")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "EXPENSE_NOT_FOUND", "Expense not found")
		return
	}

	response.Success(w, map[string]any{"id": expenseID, "deleted": true})
}
