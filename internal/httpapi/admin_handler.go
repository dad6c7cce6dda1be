package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"modelbroker/internal/auth"
	"modelbroker/internal/models"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

// handleAdminLogin exchanges the admin password for a short-lived JWT
func (deps *Dependencies) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if deps.Config.AdminPasswordHash == "" {
		utils.RespondWithError(w, http.StatusForbidden, "Admin access not configured")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "password is required")
		return
	}

	if !auth.CheckPassword(req.Password, deps.Config.AdminPasswordHash) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := auth.GenerateAdminJWT(deps.Config.JWTSecret)
	if err != nil {
		deps.Logger.Error("Failed to generate admin token", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// handleAdminModels manages the model catalog: GET lists, POST creates,
// DELETE removes. The provider API key is encrypted before it touches the
// database and is never returned.
func (deps *Dependencies) handleAdminModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		deps.adminListModels(w, r)
	case http.MethodPost:
		deps.adminCreateModel(w, r)
	case http.MethodDelete:
		deps.adminDeleteModel(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (deps *Dependencies) adminListModels(w http.ResponseWriter, r *http.Request) {
	catalog, err := deps.Models.List(r.Context())
	if err != nil {
		deps.Logger.Error("Failed to list models", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list models")
		return
	}

	views := make([]modelView, 0, len(catalog))
	for _, m := range catalog {
		views = append(views, newModelView(m))
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"models": views})
}

func (deps *Dependencies) adminCreateModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NameForUser    string   `json:"nameForUser"`
		NameForRequest string   `json:"nameForRequest"`
		ProviderAPIKey string   `json:"providerApiKey"`
		Modalities     []string `json:"modalities"`
		InputPriceUSD  float64  `json:"inputPriceUsd"`
		OutputPriceUSD float64  `json:"outputPriceUsd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NameForUser == "" || req.NameForRequest == "" || req.ProviderAPIKey == "" {
		utils.RespondWithError(w, http.StatusBadRequest,
			"nameForUser, nameForRequest and providerApiKey are required")
		return
	}

	if len(req.Modalities) == 0 {
		req.Modalities = []string{string(models.ModalityTextToText)}
	}
	for _, m := range req.Modalities {
		if _, err := models.ParseModality(m); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	encryptedKey, err := deps.Encryption.Encrypt([]byte(req.ProviderAPIKey))
	if err != nil {
		deps.Logger.Error("Failed to encrypt provider key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create model")
		return
	}

	model := &models.Model{
		NameForUser:          req.NameForUser,
		NameForRequest:       req.NameForRequest,
		EncryptedProviderKey: encryptedKey,
		Modalities:           pq.StringArray(req.Modalities),
		InputPriceUSD:        req.InputPriceUSD,
		OutputPriceUSD:       req.OutputPriceUSD,
	}
	if err := deps.Models.Create(r.Context(), model); err != nil {
		deps.Logger.Error("Failed to create model", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create model")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "created",
		"model":  newModelView(model),
	})
}

func (deps *Dependencies) adminDeleteModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelID string `json:"modelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ModelID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "modelId is required")
		return
	}

	modelID, err := uuid.Parse(req.ModelID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "modelId must be a valid id")
		return
	}

	if err := deps.Models.Delete(r.Context(), modelID); err != nil {
		if errors.Is(err, storage.ErrModelNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Model not found")
			return
		}
		deps.Logger.Error("Failed to delete model", "model_id", modelID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete model")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
