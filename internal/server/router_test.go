package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/models"
)

func setupRouter(t *testing.T) http.Handler {
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
	return New(db, zerolog.Nop())
}

func TestHealthEndpoints(t *testing.T) {
	h := setupRouter(t)
	for _, path := range []string{"/health", "/healthz"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestRootRedirectsToList(t *testing.T) {
	h := setupRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/approvisionnements" {
		t.Fatalf("expected redirect to /approvisionnements, got %s", loc)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := setupRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/approvisionnements", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	h := setupRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRequestIDCorrelatesHandlerLogs(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("depuis le handler")
	})
	h := withLogging(inner, log)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/approvisionnements", nil))

	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id response header")
	}

	re := regexp.MustCompile(`"request_id":"([^"]+)"`)
	ids := re.FindAllStringSubmatch(buf.String(), -1)
	if len(ids) != 2 {
		t.Fatalf("expected request_id on handler line and access line, got %d in %s", len(ids), buf.String())
	}
	if ids[0][1] != ids[1][1] {
		t.Fatalf("request ids differ: %s vs %s", ids[0][1], ids[1][1])
	}
	if ids[0][1] != w.Header().Get("X-Request-Id") {
		t.Fatalf("logged id %s does not match response header %s", ids[0][1], w.Header().Get("X-Request-Id"))
	}
}
