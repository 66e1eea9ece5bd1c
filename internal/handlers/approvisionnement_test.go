package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/models"
	"github.com/diewo77/gesappro/internal/repository"
	"github.com/diewo77/gesappro/internal/services"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Fournisseur{}, &models.Article{},
		&models.Approvisionnement{}, &models.ApprovisionnementArticle{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestHandler(db *gorm.DB) *ApprovisionnementHandler {
	approRepo := repository.NewApprovisionnementRepository(db)
	fournisseurs := repository.NewFournisseurRepository(db)
	articles := repository.NewArticleRepository(db)
	svc := services.NewApprovisionnementService(approRepo, fournisseurs, articles,
		services.NewReferenceGenerator(approRepo), zerolog.Nop())
	return NewApprovisionnementHandler(svc, fournisseurs, articles, zerolog.Nop())
}

func seedHandlerFixtures(t *testing.T, db *gorm.DB) (models.Fournisseur, models.Article) {
	t.Helper()
	f := models.Fournisseur{Nom: "Comptoir du Bâtiment"}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("fournisseur: %v", err)
	}
	a := models.Article{Libelle: "Ciment 50kg"}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("article: %v", err)
	}
	return f, a
}

func TestCreateAndListJSON(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	body := fmt.Sprintf(`{"fournisseur_id":%d,"lignes":[{"article_id":%d,"quantite":2,"prix_unitaire":"10.00"},{"article_id":%d,"quantite":0,"prix_unitaire":"5.00"}]}`,
		f.ID, a.ID, a.ID)
	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["reference"] != "APP0001" {
		t.Fatalf("expected reference APP0001, got %v", created["reference"])
	}
	if created["montant_total"] != "20" && created["montant_total"] != "20.00" {
		t.Fatalf("expected montant_total 20, got %v", created["montant_total"])
	}

	listReq := httptest.NewRequest(http.MethodGet, "/approvisionnements", nil)
	listReq.Header.Set("Accept", "application/json")
	listW := httptest.NewRecorder()
	h.List(listW, listReq)
	if listW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listW.Code)
	}
	var listResp struct {
		Total     int64 `json:"total"`
		PageCount int   `json:"page_count"`
	}
	if err := json.Unmarshal(listW.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listResp.Total != 1 || listResp.PageCount != 1 {
		t.Fatalf("expected 1 item / 1 page, got %+v", listResp)
	}
}

func TestCreateJSONNoValidLines(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	body := fmt.Sprintf(`{"fournisseur_id":%d,"lignes":[{"article_id":%d,"quantite":0,"prix_unitaire":"5.00"}]}`, f.ID, a.ID)
	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&models.Approvisionnement{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", count)
	}
}

func TestCreateFormSaveRedirects(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	form := url.Values{}
	form.Set("FournisseurId", strconv.Itoa(int(f.ID)))
	form.Set("DateApprovisionnement", "2026-08-30")
	form.Set("Observations", "livraison urgente")
	form.Set("Lignes[0].ArticleId", strconv.Itoa(int(a.ID)))
	form.Set("Lignes[0].Quantite", "3")
	form.Set("Lignes[0].PrixUnitaire", "4.50")
	// incomplete row, dropped during reconstruction
	form.Set("Lignes[1].ArticleId", strconv.Itoa(int(a.ID)))
	form.Set("action", "save")

	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d body=%s", w.Code, w.Body.String())
	}

	var appro models.Approvisionnement
	if err := db.Preload("Lignes").First(&appro).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if appro.Reference != "APP0001" {
		t.Fatalf("expected APP0001, got %s", appro.Reference)
	}
	if len(appro.Lignes) != 1 {
		t.Fatalf("expected 1 ligne, got %d", len(appro.Lignes))
	}
	if appro.MontantTotal.StringFixed(2) != "13.50" {
		t.Fatalf("expected montant 13.50, got %s", appro.MontantTotal.StringFixed(2))
	}
}

func TestCreateFormAddLigneRerendersForm(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	form := url.Values{}
	form.Set("FournisseurId", strconv.Itoa(int(f.ID)))
	form.Set("DateApprovisionnement", "2026-08-30")
	form.Set("Lignes[0].ArticleId", strconv.Itoa(int(a.ID)))
	form.Set("Lignes[0].Quantite", "1")
	form.Set("Lignes[0].PrixUnitaire", "2.00")
	form.Set("action", "addLigne")

	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Lignes[1].Quantite") {
		t.Fatalf("expected a second line row in the form")
	}

	var count int64
	if err := db.Model(&models.Approvisionnement{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("addLigne must not persist anything, got %d rows", count)
	}
}

func TestDetailJSONAndNotFound(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	body := fmt.Sprintf(`{"fournisseur_id":%d,"lignes":[{"article_id":%d,"quantite":1,"prix_unitaire":"9.99"}]}`, f.ID, a.ID)
	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var created models.Approvisionnement
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	detailReq := httptest.NewRequest(http.MethodGet, "/approvisionnements/detail?id="+strconv.Itoa(int(created.ID)), nil)
	detailReq.Header.Set("Accept", "application/json")
	detailW := httptest.NewRecorder()
	h.Detail(detailW, detailReq)
	if detailW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", detailW.Code)
	}
	var detail models.Approvisionnement
	if err := json.Unmarshal(detailW.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Fournisseur == nil || detail.Fournisseur.Nom != f.Nom {
		t.Fatalf("expected fournisseur preloaded, got %+v", detail.Fournisseur)
	}
	if len(detail.Lignes) != 1 || detail.Lignes[0].Article == nil {
		t.Fatalf("expected ligne with article preloaded, got %+v", detail.Lignes)
	}

	missingReq := httptest.NewRequest(http.MethodGet, "/approvisionnements/detail?id=999", nil)
	missingReq.Header.Set("Accept", "application/json")
	missingW := httptest.NewRecorder()
	h.Detail(missingW, missingReq)
	if missingW.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missingW.Code)
	}
}

func TestDeleteJSON(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	body := fmt.Sprintf(`{"fournisseur_id":%d,"lignes":[{"article_id":%d,"quantite":1,"prix_unitaire":"1.00"}]}`, f.ID, a.ID)
	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	var created models.Approvisionnement
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	form := url.Values{"id": {strconv.Itoa(int(created.ID))}}
	delReq := httptest.NewRequest(http.MethodPost, "/approvisionnements/delete", strings.NewReader(form.Encode()))
	delReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	delReq.Header.Set("Accept", "application/json")
	delW := httptest.NewRecorder()
	h.Delete(delW, delReq)
	if delW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", delW.Code, delW.Body.String())
	}

	var count int64
	if err := db.Model(&models.Approvisionnement{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 rows after delete, got %d", count)
	}
}

func TestListHTMLRenders(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := newTestHandler(db)
	f, a := seedHandlerFixtures(t, db)

	body := fmt.Sprintf(`{"fournisseur_id":%d,"lignes":[{"article_id":%d,"quantite":1,"prix_unitaire":"1.00"}]}`, f.ID, a.ID)
	req := httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/approvisionnements", nil)
	listW := httptest.NewRecorder()
	h.List(listW, listReq)
	if listW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", listW.Code, listW.Body.String())
	}
	html := listW.Body.String()
	if !strings.Contains(html, "APP0001") || !strings.Contains(html, f.Nom) {
		t.Fatalf("expected rendered list with reference and fournisseur")
	}
}
