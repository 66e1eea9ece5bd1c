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

// ArticleHandler serves article master data.
type ArticleHandler struct {
	repo repository.ArticleRepository
	log  zerolog.Logger
}

func NewArticleHandler(repo repository.ArticleRepository, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{repo: repo, log: log}
}

func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	articles, err := h.repo.List(r.Context())
	if err != nil {
		requestLog(r, h.log).Error().Err(err).Msg("liste articles")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, statusFor(err), messageFor(err), nil)
			return
		}
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": articles})
		return
	}
	_ = view.Render(w, "articles.html", map[string]any{
		"Title": "Articles", "Articles": articles,
	})
}

func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var libelle string
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Libelle string `json:"libelle"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		libelle = req.Libelle
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "formulaire invalide", http.StatusBadRequest)
			return
		}
		libelle = r.Form.Get("Libelle")
	}
	libelle = strings.TrimSpace(libelle)
	if libelle == "" {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusBadRequest, "libellé requis", nil)
			return
		}
		http.Error(w, "libellé requis", http.StatusBadRequest)
		return
	}
	a := models.Article{Libelle: libelle}
	if err := h.repo.Create(r.Context(), &a); err != nil {
		requestLog(r, h.log).Error().Err(err).Msg("création article")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusInternalServerError, "une erreur interne est survenue", nil)
			return
		}
		http.Error(w, "une erreur interne est survenue", http.StatusInternalServerError)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, a)
		return
	}
	http.Redirect(w, r, "/articles", http.StatusSeeOther)
}

func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	http.Redirect(w, r, "/articles", http.StatusSeeOther)
}
