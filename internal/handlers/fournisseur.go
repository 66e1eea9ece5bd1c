package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/diewo77/gesappro/internal/httpx"
	"github.com/diewo77/gesappro/internal/models"
	"github.com/diewo77/gesappro/internal/repository"
	"github.com/diewo77/gesappro/internal/view"
)

// FournisseurHandler serves fournisseur master data: list, create,
// delete (restricted while referenced).
type FournisseurHandler struct {
	repo repository.FournisseurRepository
	log  zerolog.Logger
}

func NewFournisseurHandler(repo repository.FournisseurRepository, log zerolog.Logger) *FournisseurHandler {
	return &FournisseurHandler{repo: repo, log: log}
}

func (h *FournisseurHandler) List(w http.ResponseWriter, r *http.Request) {
	fournisseurs, err := h.repo.List(r.Context())
	if err != nil {
		requestLog(r, h.log).Error().Err(err).Msg("liste fournisseurs")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, statusFor(err), messageFor(err), nil)
			return
		}
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": fournisseurs})
		return
	}
	_ = view.Render(w, "fournisseurs.html", map[string]any{
		"Title": "Fournisseurs", "Fournisseurs": fournisseurs,
	})
}

func (h *FournisseurHandler) Create(w http.ResponseWriter, r *http.Request) {
	var nom string
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Nom string `json:"nom"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		nom = req.Nom
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "formulaire invalide", http.StatusBadRequest)
			return
		}
		nom = r.Form.Get("Nom")
	}
	nom = strings.TrimSpace(nom)
	if nom == "" {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusBadRequest, "nom requis", nil)
			return
		}
		http.Error(w, "nom requis", http.StatusBadRequest)
		return
	}
	f := models.Fournisseur{Nom: nom}
	if err := h.repo.Create(r.Context(), &f); err != nil {
		requestLog(r, h.log).Error().Err(err).Msg("création fournisseur")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusInternalServerError, "une erreur interne est survenue", nil)
			return
		}
		http.Error(w, "une erreur interne est survenue", http.StatusInternalServerError)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, f)
		return
	}
	http.Redirect(w, r, "/fournisseurs", http.StatusSeeOther)
}

func (h *FournisseurHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "formulaire invalide", http.StatusBadRequest)
		return
	}
	id, _ := strconv.Atoi(r.Form.Get("id"))
	if err := h.repo.Delete(r.Context(), uint(id)); err != nil {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, statusFor(err), messageFor(err), nil)
			return
		}
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}
	http.Redirect(w, r, "/fournisseurs", http.StatusSeeOther)
}
