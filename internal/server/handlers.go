package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tradewatch/internal/event"
	"tradewatch/internal/logger"
	"tradewatch/internal/store"
	"tradewatch/internal/types"
)

func (h *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context(), nil)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to load dashboard stats", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"service":     "tradewatch",
		"subscribers": h.hub.Len(),
		"stats":       stats,
	})
}

// handleIngest accepts a trade snapshot from the external writer,
// upserts account and history atomically, then publishes one change
// event. The publish is fire-and-forget: the write has already
// committed, so a delivery failure is logged and swallowed.
func (h *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	op := logger.StartOperation(r.Context(), "ingest_snapshot")
	ctx := op.GetContext()

	var snap types.TradeSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		op.EndWithError(err)
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if snap.AccNumber == 0 || snap.Date == "" {
		op.End("rejected", true)
		respondError(w, http.StatusBadRequest, "Missing required fields: acc_number, date")
		return
	}
	if _, err := time.Parse("2006-01-02", snap.Date); err != nil {
		op.End("rejected", true)
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	accountID, err := h.store.UpsertSnapshot(ctx, snap)
	if err != nil {
		op.EndWithError(err)
		respondError(w, http.StatusInternalServerError, "Failed to save trade data")
		return
	}
	logger.Ingest(ctx, snap.AccNumber, snap.Date, "account_id", accountID)

	ev := event.New(event.TableHistory, event.OpUpdate, nil, map[string]any{
		"account_id": accountID,
		"acc_number": snap.AccNumber,
		"date":       snap.Date,
		"balance":    snap.Balance,
		"equity":     snap.Equity,
		"current":    snap.Current,
		"history":    snap.History,
	})
	delivered := h.hub.Publish(ev)
	logger.Publish(ctx, string(ev.Table), string(ev.Op), delivered)

	op.End()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"account_id": accountID,
		"message":    "Trade data saved successfully",
	})
}

func optionalAccNumber(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("acc_number")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (h *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accNumber, err := optionalAccNumber(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid acc_number")
		return
	}
	accounts, err := h.store.Accounts(r.Context(), accNumber)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to fetch accounts", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch accounts")
		return
	}
	if accounts == nil {
		accounts = []types.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Server) handleAccountsWithHistory(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Format("2006-01-02")
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	if start == "" {
		start = today
	}
	if end == "" {
		end = today
	}

	rows, err := h.store.AccountsWithHistory(r.Context(), start, end)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to fetch accounts with history", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch accounts with history")
		return
	}
	if rows == nil {
		rows = []types.AccountWithHistory{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	accNumber, err := optionalAccNumber(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid acc_number")
		return
	}

	f := store.HistoryFilter{
		AccNumber: accNumber,
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		Limit:     30,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || (n < 1 && n != -1) {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		f.Offset = n
	}

	rows, err := h.store.History(r.Context(), f)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to fetch history", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	if rows == nil {
		rows = []types.History{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	accNumber, err := optionalAccNumber(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid acc_number")
		return
	}
	stats, err := h.store.Stats(r.Context(), accNumber)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to fetch stats", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	accNumber, err := optionalAccNumber(r)
	if err != nil || accNumber == nil {
		respondError(w, http.StatusBadRequest, "Account number is required")
		return
	}

	var body struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		CategoryID *int64 `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	account, err := h.store.UpdateAccount(r.Context(), *accNumber, store.AccountUpdate{
		Name:       body.Name,
		Email:      body.Email,
		CategoryID: body.CategoryID,
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to update account", err, "acc_number", *accNumber)
		respondError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}

	h.publishAccountsChange(r, event.OpUpdate, account)
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"account": account,
		"message": "Account updated successfully",
	})
}

func (h *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accNumber, err := optionalAccNumber(r)
	if err != nil || accNumber == nil {
		respondError(w, http.StatusBadRequest, "Account number is required")
		return
	}

	err = h.store.DeleteAccount(r.Context(), *accNumber)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to delete account", err, "acc_number", *accNumber)
		respondError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	h.publishAccountsChange(r, event.OpDelete, map[string]int64{"acc_number": *accNumber})
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account and all related history deleted successfully",
	})
}

func (h *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Categories(r.Context())
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to fetch categories", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}
	if categories == nil {
		categories = []types.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	category, err := h.store.CreateCategory(r.Context(), body.Title)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to create category", err)
		respondError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"category": category,
		"message":  "Category created successfully",
	})
}

func categoryID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func (h *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ID is required")
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		respondError(w, http.StatusBadRequest, "Title and ID are required")
		return
	}

	category, err := h.store.UpdateCategory(r.Context(), id, body.Title)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to update category", err, "id", id)
		respondError(w, http.StatusInternalServerError, "Failed to update category")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"category": category,
		"message":  "Category updated successfully",
	})
}

// handleDeleteCategory applies the required two-step atomic mutation:
// dependent accounts are re-pointed to no category, then the category
// row is removed, all-or-nothing.
func (h *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "ID is required")
		return
	}

	err := h.store.DeleteCategory(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to delete category", err, "id", id)
		respondError(w, http.StatusInternalServerError, "Failed to delete category")
		return
	}

	h.publishAccountsChange(r, event.OpUpdate, map[string]int64{"category_id": id})
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Category deleted successfully",
	})
}

func (h *Server) handleAccountsCount(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("category_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil {
		respondError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	count, err := h.store.AccountsCountByCategory(r.Context(), id)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Failed to fetch accounts count", err, "category_id", id)
		respondError(w, http.StatusInternalServerError, "Failed to fetch accounts count")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Server) publishAccountsChange(r *http.Request, op event.Operation, state any) {
	ev := event.New(event.TableAccounts, op, nil, state)
	delivered := h.hub.Publish(ev)
	logger.Publish(r.Context(), string(ev.Table), string(ev.Op), delivered)
}
