package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diewo77/gesappro/internal/httpx"
	"github.com/diewo77/gesappro/internal/models"
	"github.com/diewo77/gesappro/internal/repository"
	"github.com/diewo77/gesappro/internal/services"
	"github.com/diewo77/gesappro/internal/view"
)

const pageSize = 10

// ApprovisionnementHandler serves the list/create/detail/delete routes
// in dual format: HTML pages for the browser, JSON when asked for.
type ApprovisionnementHandler struct {
	svc          *services.ApprovisionnementService
	fournisseurs repository.FournisseurRepository
	articles     repository.ArticleRepository
	log          zerolog.Logger
}

func NewApprovisionnementHandler(
	svc *services.ApprovisionnementService,
	fournisseurs repository.FournisseurRepository,
	articles repository.ArticleRepository,
	log zerolog.Logger,
) *ApprovisionnementHandler {
	return &ApprovisionnementHandler{svc: svc, fournisseurs: fournisseurs, articles: articles, log: log}
}

// List: GET /approvisionnements
func (h *ApprovisionnementHandler) List(w http.ResponseWriter, r *http.Request) {
	f := repository.ApprovisionnementFilter{
		Page:          queryInt(r, "page", 1),
		PageSize:      pageSize,
		Search:        strings.TrimSpace(r.URL.Query().Get("search")),
		FournisseurID: queryUint(r, "fournisseurId"),
		ArticleID:     queryUint(r, "articleId"),
		SortOrder:     r.URL.Query().Get("sortOrder"),
	}
	if v := r.URL.Query().Get("dateDebut"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.DateDebut = &t
		}
	}
	if v := r.URL.Query().Get("dateFin"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			// inclusive upper bound: end of day
			t = t.Add(24*time.Hour - time.Second)
			f.DateFin = &t
		}
	}

	items, total, pageCount, err := h.svc.List(r.Context(), f)
	if err != nil {
		requestLog(r, h.log).Error().Err(err).Msg("liste approvisionnements")
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, statusFor(err), messageFor(err), nil)
			return
		}
		http.Error(w, messageFor(err), statusFor(err))
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"items":      items,
			"total":      total,
			"page":       f.Page,
			"page_count": pageCount,
		})
		return
	}

	fournisseurs, _ := h.fournisseurs.List(r.Context())
	articles, _ := h.articles.List(r.Context())
	_ = view.Render(w, "approvisionnements.html", map[string]any{
		"Title":         "Approvisionnements",
		"Items":         items,
		"Total":         total,
		"Page":          f.Page,
		"PageCount":     pageCount,
		"Search":        f.Search,
		"SortOrder":     f.SortOrder,
		"DateDebut":     r.URL.Query().Get("dateDebut"),
		"DateFin":       r.URL.Query().Get("dateFin"),
		"FournisseurID": f.FournisseurID,
		"ArticleID":     f.ArticleID,
		"Fournisseurs":  fournisseurs,
		"Articles":      articles,
	})
}

// New: GET /approvisionnements/new – form with one empty line row.
func (h *ApprovisionnementHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, &models.Approvisionnement{
		DateApprovisionnement: time.Now(),
		Lignes:                []models.ApprovisionnementArticle{{Quantite: 1}},
	}, "")
}

// Create: POST /approvisionnements – JSON or multi-row form.
func (h *ApprovisionnementHandler) Create(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.createJSON(w, r)
		return
	}
	h.createForm(w, r)
}

func (h *ApprovisionnementHandler) createJSON(w http.ResponseWriter, r *http.Request) {
	type ligneReq struct {
		ArticleID    uint            `json:"article_id"`
		Quantite     int             `json:"quantite"`
		PrixUnitaire decimal.Decimal `json:"prix_unitaire"`
	}
	type createReq struct {
		FournisseurID uint       `json:"fournisseur_id"`
		Date          string     `json:"date"`
		Observations  string     `json:"observations"`
		Reference     string     `json:"reference"`
		Lignes        []ligneReq `json:"lignes"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	appro := &models.Approvisionnement{
		FournisseurID: req.FournisseurID,
		Observations:  req.Observations,
		Reference:     req.Reference,
	}
	if req.Date != "" {
		if t, err := time.Parse("2006-01-02", req.Date); err == nil {
			appro.DateApprovisionnement = t
		}
	}
	lignes := make([]models.ApprovisionnementArticle, 0, len(req.Lignes))
	for _, l := range req.Lignes {
		lignes = append(lignes, models.ApprovisionnementArticle{
			ArticleID:    l.ArticleID,
			Quantite:     l.Quantite,
			PrixUnitaire: l.PrixUnitaire,
		})
	}
	created, err := h.svc.Create(r.Context(), appro, lignes)
	if err != nil {
		httpx.JSONError(w, statusFor(err), messageFor(err), nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *ApprovisionnementHandler) createForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "formulaire invalide", http.StatusBadRequest)
		return
	}
	appro := approFromForm(r.Form)
	appro.Lignes = lignesFromForm(r.Form)

	action := r.Form.Get("action")
	switch {
	case action == "addLigne":
		appro.Lignes = append(appro.Lignes, models.ApprovisionnementArticle{Quantite: 1})
		h.renderForm(w, r, appro, "")
		return
	case strings.HasPrefix(action, "removeLigne:"):
		if idx, err := strconv.Atoi(strings.TrimPrefix(action, "removeLigne:")); err == nil &&
			idx >= 0 && idx < len(appro.Lignes) {
			appro.Lignes = append(appro.Lignes[:idx], appro.Lignes[idx+1:]...)
		}
		h.renderForm(w, r, appro, "")
		return
	}

	lignes := appro.Lignes
	appro.Lignes = nil
	if _, err := h.svc.Create(r.Context(), appro, lignes); err != nil {
		appro.Lignes = lignes
		h.renderForm(w, r, appro, messageFor(err))
		return
	}
	http.Redirect(w, r, "/approvisionnements", http.StatusSeeOther)
}

func (h *ApprovisionnementHandler) renderForm(w http.ResponseWriter, r *http.Request, appro *models.Approvisionnement, errMsg string) {
	fournisseurs, _ := h.fournisseurs.List(r.Context())
	articles, _ := h.articles.List(r.Context())
	if len(appro.Lignes) == 0 {
		appro.Lignes = []models.ApprovisionnementArticle{{Quantite: 1}}
	}
	_ = view.Render(w, "approvisionnement_form.html", map[string]any{
		"Title":        "Nouvel approvisionnement",
		"Appro":        appro,
		"Fournisseurs": fournisseurs,
		"Articles":     articles,
		"Error":        errMsg,
	})
}

// Detail: GET /approvisionnements/detail?id=N
func (h *ApprovisionnementHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id := queryUint(r, "id")
	appro, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, statusFor(err), messageFor(err), nil)
			return
		}
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, appro)
		return
	}
	_ = view.Render(w, "approvisionnement_detail.html", map[string]any{
		"Title": "Approvisionnement " + appro.Reference,
		"Appro": appro,
	})
}

// Delete: POST /approvisionnements/delete
func (h *ApprovisionnementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "formulaire invalide", http.StatusBadRequest)
		return
	}
	id, _ := strconv.Atoi(r.Form.Get("id"))
	if err := h.svc.Delete(r.Context(), uint(id)); err != nil {
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
	http.Redirect(w, r, "/approvisionnements", http.StatusSeeOther)
}

func approFromForm(form url.Values) *models.Approvisionnement {
	appro := &models.Approvisionnement{
		Observations: strings.TrimSpace(form.Get("Observations")),
	}
	if id, err := strconv.Atoi(form.Get("FournisseurId")); err == nil && id > 0 {
		appro.FournisseurID = uint(id)
	}
	if t, err := time.Parse("2006-01-02", form.Get("DateApprovisionnement")); err == nil {
		appro.DateApprovisionnement = t
	}
	return appro
}

// lignesFromForm rebuilds the variable-length line rows from indexed
// form keys (Lignes[0].ArticleId, Lignes[0].Quantite, ...). Rows with
// a missing or unparseable field are dropped, matching the tolerant
// form contract: the service re-validates what remains.
func lignesFromForm(form url.Values) []models.ApprovisionnementArticle {
	maxIndex := -1
	for key := range form {
		rest, ok := strings.CutPrefix(key, "Lignes[")
		if !ok {
			continue
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			continue
		}
		if idx, err := strconv.Atoi(rest[:end]); err == nil && idx > maxIndex {
			maxIndex = idx
		}
	}
	lignes := make([]models.ApprovisionnementArticle, 0, maxIndex+1)
	for i := 0; i <= maxIndex; i++ {
		articleStr := form.Get(fmt.Sprintf("Lignes[%d].ArticleId", i))
		quantiteStr := form.Get(fmt.Sprintf("Lignes[%d].Quantite", i))
		prixStr := form.Get(fmt.Sprintf("Lignes[%d].PrixUnitaire", i))
		if articleStr == "" || quantiteStr == "" || prixStr == "" {
			continue
		}
		articleID, err1 := strconv.Atoi(articleStr)
		quantite, err2 := strconv.Atoi(quantiteStr)
		prix, err3 := decimal.NewFromString(prixStr)
		if err1 != nil || err2 != nil || err3 != nil || articleID < 0 {
			continue
		}
		lignes = append(lignes, models.ApprovisionnementArticle{
			ArticleID:    uint(articleID),
			Quantite:     quantite,
			PrixUnitaire: prix,
		})
	}
	return lignes
}
