package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"modelbroker/internal/auth"
	"modelbroker/internal/models"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

// modelView is the catalog representation of a model. The provider key
// never leaves the server.
type modelView struct {
	ID             uuid.UUID `json:"id"`
	NameForUser    string    `json:"nameForUser"`
	Modalities     []string  `json:"modalities"`
	InputPriceUSD  float64   `json:"inputPriceUsd"`
	OutputPriceUSD float64   `json:"outputPriceUsd"`
	IsChoosed      bool      `json:"isChoosed,omitempty"`
}

func newModelView(m *models.Model) modelView {
	return modelView{
		ID:             m.ID,
		NameForUser:    m.NameForUser,
		Modalities:     []string(m.Modalities),
		InputPriceUSD:  m.InputPriceUSD,
		OutputPriceUSD: m.OutputPriceUSD,
	}
}

// handleGetAiModels lists the model catalog. With a tlgid, each model
// carries an isChoosed flag for the user's existing grants.
func (deps *Dependencies) handleGetAiModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	catalog, err := deps.Models.List(r.Context())
	if err != nil {
		deps.Logger.Error("Failed to list models", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch AI models")
		return
	}

	views := make([]modelView, 0, len(catalog))

	raw := r.URL.Query().Get("tlgid")
	if raw == "" {
		for _, m := range catalog {
			views = append(views, newModelView(m))
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"models": views})
		return
	}

	tlgID, ok := tlgIDFromQuery(w, r)
	if !ok {
		return
	}

	grants, err := deps.Grants.ListByTlgID(r.Context(), tlgID)
	if err != nil {
		deps.Logger.Error("Failed to list grants", "tlg_id", tlgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch AI models")
		return
	}

	chosen := make(map[uuid.UUID]bool, len(grants))
	for _, g := range grants {
		chosen[g.ModelID] = true
	}

	for _, m := range catalog {
		v := newModelView(m)
		v.IsChoosed = chosen[m.ID]
		views = append(views, v)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"models": views})
}

// handleChooseAiModel creates a grant for (owner, model) and returns its
// access token. Choosing the same model twice returns the existing grant
// with status "already_exists".
func (deps *Dependencies) handleChooseAiModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		TlgID   int64  `json:"tlgid"`
		ModelID string `json:"modelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TlgID == 0 || req.ModelID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "tlgid and modelId are required")
		return
	}

	modelID, err := uuid.Parse(req.ModelID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "modelId must be a valid id")
		return
	}

	user, err := deps.Users.GetByTlgID(r.Context(), req.TlgID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		deps.Logger.Error("Failed to look up user", "tlg_id", req.TlgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save choice")
		return
	}

	if _, err := deps.Models.GetByID(r.Context(), modelID); err != nil {
		if errors.Is(err, storage.ErrModelNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Model not found")
			return
		}
		deps.Logger.Error("Failed to look up model", "model_id", modelID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save choice")
		return
	}

	token, err := auth.GenerateAccessToken()
	if err != nil {
		deps.Logger.Error("Failed to generate access token", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save choice")
		return
	}

	grant := &models.Grant{
		UserID:  user.ID,
		ModelID: modelID,
		TlgID:   user.TlgID,
		Token:   token,
	}
	if err := deps.Grants.Create(r.Context(), grant); err != nil {
		if errors.Is(err, storage.ErrGrantExists) {
			existing, lookupErr := deps.Grants.GetByUserAndModel(r.Context(), user.ID, modelID)
			if lookupErr != nil {
				deps.Logger.Error("Failed to fetch existing grant", "error", lookupErr)
				utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save choice")
				return
			}
			utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
				"status": "already_exists",
				"choice": existing,
			})
			return
		}
		deps.Logger.Error("Failed to create grant", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save choice")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "created",
		"choice": grant,
	})
}

// handleGetUserChosenModels lists the owner's grants with their model
// descriptors attached
func (deps *Dependencies) handleGetUserChosenModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tlgID, ok := tlgIDFromQuery(w, r)
	if !ok {
		return
	}

	grants, err := deps.Grants.ListByTlgID(r.Context(), tlgID)
	if err != nil {
		deps.Logger.Error("Failed to list grants", "tlg_id", tlgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch chosen models")
		return
	}

	type chosenModel struct {
		ID      uuid.UUID  `json:"id"`
		Token   string     `json:"token"`
		TlgID   int64      `json:"tlgid"`
		Model   *modelView `json:"model,omitempty"`
		ModelID uuid.UUID  `json:"modelId"`
	}

	out := make([]chosenModel, 0, len(grants))
	for _, g := range grants {
		item := chosenModel{
			ID:      g.ID,
			Token:   g.Token,
			TlgID:   g.TlgID,
			ModelID: g.ModelID,
		}
		if m, err := deps.Models.GetByID(r.Context(), g.ModelID); err == nil {
			v := newModelView(m)
			item.Model = &v
		}
		out = append(out, item)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"models": out})
}

// handleDeleteChosenModel revokes a grant by id
func (deps *Dependencies) handleDeleteChosenModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		ChosenModelID string `json:"chosenModelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChosenModelID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "chosenModelId is required")
		return
	}

	grantID, err := uuid.Parse(req.ChosenModelID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "chosenModelId must be a valid id")
		return
	}

	if err := deps.Grants.Delete(r.Context(), grantID); err != nil {
		if errors.Is(err, storage.ErrGrantNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Chosen model not found")
			return
		}
		deps.Logger.Error("Failed to delete grant", "grant_id", grantID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete chosen model")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status": "deleted",
	})
}
