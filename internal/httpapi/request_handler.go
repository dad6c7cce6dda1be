package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"modelbroker/internal/broker"
	"modelbroker/internal/dispatch"
	"modelbroker/internal/utils"
)

// handleRequest is the orchestrator entry point. The grant token arrives
// as a Bearer credential; the body carries the input, modality, and the
// optional image reference and aspect ratio.
func (deps *Dependencies) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	token := bearerToken(r)
	if token == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing access token")
		return
	}

	var req struct {
		Input    string `json:"input"`
		Modality string `json:"modality"`
		PhotoURL string `json:"photo_url"`
		Format   string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Modality == "" {
		req.Modality = "text_to_text"
	}

	outcome, err := deps.Orchestrator.Handle(r.Context(), broker.Request{
		Token:       token,
		Input:       req.Input,
		Modality:    req.Modality,
		ImageRef:    req.PhotoURL,
		AspectRatio: req.Format,
	})
	if err != nil {
		deps.respondRequestError(w, err)
		return
	}

	if outcome.Status == broker.StatusLowBalance {
		utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
			"status": "lowbalance",
		})
		return
	}

	result := outcome.Text
	if outcome.ImageURL != "" {
		result = outcome.ImageURL
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"result": result,
	})
}

// respondRequestError maps pipeline failures to user-facing responses.
// Business rejections carry their detail; infrastructure faults stay
// opaque.
func (deps *Dependencies) respondRequestError(w http.ResponseWriter, err error) {
	var dispatchErr *dispatch.Error
	switch {
	case errors.Is(err, broker.ErrInvalidToken):
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid access token")
	case errors.Is(err, broker.ErrOwnerNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Owner not found")
	case errors.As(err, &dispatchErr):
		utils.RespondWithError(w, http.StatusBadRequest, dispatchErr.Error())
	default:
		deps.Logger.Error("Request pipeline failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Request failed")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
