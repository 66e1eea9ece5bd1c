package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/gesappro/internal/handlers"
	"github.com/diewo77/gesappro/internal/httpx"
	"github.com/diewo77/gesappro/internal/repository"
	"github.com/diewo77/gesappro/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	approRepo := repository.NewApprovisionnementRepository(db)
	fournisseurRepo := repository.NewFournisseurRepository(db)
	articleRepo := repository.NewArticleRepository(db)

	refs := services.NewReferenceGenerator(approRepo)
	approSvc := services.NewApprovisionnementService(approRepo, fournisseurRepo, articleRepo, refs, log)

	ah := handlers.NewApprovisionnementHandler(approSvc, fournisseurRepo, articleRepo, log)
	fh := handlers.NewFournisseurHandler(fournisseurRepo, log)
	arth := handlers.NewArticleHandler(articleRepo, log)

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/approvisionnements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ah.List(w, r)
		case http.MethodPost:
			ah.Create(w, r)
		default:
			methodNotAllowed(w, "GET,POST")
		}
	})
	mux.HandleFunc("/approvisionnements/new", requireMethod(http.MethodGet, ah.New))
	mux.HandleFunc("/approvisionnements/detail", requireMethod(http.MethodGet, ah.Detail))
	mux.HandleFunc("/approvisionnements/delete", requireMethod(http.MethodPost, ah.Delete))

	mux.HandleFunc("/fournisseurs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fh.List(w, r)
		case http.MethodPost:
			fh.Create(w, r)
		default:
			methodNotAllowed(w, "GET,POST")
		}
	})
	mux.HandleFunc("/fournisseurs/delete", requireMethod(http.MethodPost, fh.Delete))

	mux.HandleFunc("/articles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			arth.List(w, r)
		case http.MethodPost:
			arth.Create(w, r)
		default:
			methodNotAllowed(w, "GET,POST")
		}
	})
	mux.HandleFunc("/articles/delete", requireMethod(http.MethodPost, arth.Delete))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/approvisionnements", http.StatusFound)
	})

	return withRecover(withLogging(mux, log), log)
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, method)
			return
		}
		next(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		reqLog := log.With().Str("request_id", id).Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))
		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("requête")
	})
}

func withRecover(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic récupéré")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
