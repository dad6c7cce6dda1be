package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"modelbroker/internal/models"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

// handleEnter finds or creates the user behind a Telegram id. Fresh users
// get "showOnboarding" so the bot can walk them through setup; returning
// users get "showIndexPage".
func (deps *Dependencies) handleEnter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		TlgID int64 `json:"tlgid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TlgID == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "tlgid is required")
		return
	}

	user, err := deps.Users.GetByTlgID(r.Context(), req.TlgID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			deps.Logger.Error("Failed to look up user", "tlg_id", req.TlgID, "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to enter")
			return
		}

		user = &models.User{TlgID: req.TlgID}
		if err := deps.Users.Create(r.Context(), user); err != nil {
			deps.Logger.Error("Failed to create user", "tlg_id", req.TlgID, "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to enter")
			return
		}

		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"result":  "showOnboarding",
			"tlgid":   user.TlgID,
			"balance": user.Balance,
		})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"result":  "showIndexPage",
		"tlgid":   user.TlgID,
		"name":    user.Name,
		"balance": user.Balance,
	})
}

// handleGetBalance returns the owner's current balance in RUB
func (deps *Dependencies) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tlgID, ok := tlgIDFromQuery(w, r)
	if !ok {
		return
	}

	user, err := deps.Users.GetByTlgID(r.Context(), tlgID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		deps.Logger.Error("Failed to fetch balance", "tlg_id", tlgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch balance")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"balance": user.Balance,
	})
}

// handlePaymentWebhook credits a balance top-up reported by the payment
// bot. The credit is a single atomic increment; the payment system expects
// a plain 200.
func (deps *Dependencies) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		PaydUser int64   `json:"paydUser"`
		PaydSum  float64 `json:"paydSum"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaydUser == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "paydUser and paydSum are required")
		return
	}

	balance, err := deps.Users.Credit(r.Context(), req.PaydUser, req.PaydSum)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		deps.Logger.Error("Failed to credit balance", "tlg_id", req.PaydUser, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Webhook failed")
		return
	}

	deps.Logger.Info("Payment credited", "tlg_id", req.PaydUser, "amount", req.PaydSum)

	if deps.NotifyWorker != nil {
		deps.NotifyWorker.NotifyCredit(req.PaydUser, req.PaydSum, balance)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Webhook processed successfully",
		"balance": balance,
	})
}

// handleApplyPromo redeems a promo code for the owner. Each owner may
// redeem a given code once.
func (deps *Dependencies) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		TlgID int64  `json:"tlgid"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TlgID == 0 || req.Code == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "tlgid and code are required")
		return
	}

	user, err := deps.Users.GetByTlgID(r.Context(), req.TlgID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		deps.Logger.Error("Failed to look up user", "tlg_id", req.TlgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to apply promo")
		return
	}

	promo, err := deps.Promos.GetActiveByCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrPromoNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Promo code not found")
			return
		}
		deps.Logger.Error("Failed to look up promo", "code", req.Code, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to apply promo")
		return
	}

	balance, err := deps.Promos.Redeem(r.Context(), promo, user.ID, user.TlgID)
	if err != nil {
		if errors.Is(err, storage.ErrPromoAlreadyRedeemed) {
			utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
				"status": "already_used",
			})
			return
		}
		deps.Logger.Error("Failed to redeem promo", "code", req.Code, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to apply promo")
		return
	}

	if deps.NotifyWorker != nil {
		deps.NotifyWorker.NotifyCredit(user.TlgID, promo.Amount, balance)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"credited": promo.Amount,
		"balance":  balance,
	})
}

// handleHealth reports liveness including database reachability
func (deps *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := deps.DB.Health(r.Context()); err != nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tlgIDFromQuery extracts and validates the tlgid query parameter
func tlgIDFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("tlgid")
	if raw == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "tlgid is required")
		return 0, false
	}

	tlgID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "tlgid must be numeric")
		return 0, false
	}

	return tlgID, true
}
