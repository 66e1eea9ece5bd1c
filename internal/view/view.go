// Package view renders the server-side templates. Each page template
// is parsed together with layout.html and cached; DEV=1 disables the
// cache so edits show up without a restart.
package view

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	baseDir  string
	baseOnce sync.Once
	cache    = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}
)

func detectBase() {
	// Works whether the process runs from the repo root or a subdir
	// (cmd/server, internal/handlers tests).
	candidates := []string{"templates", "../templates", "../../templates", "../../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"date":  func(t time.Time) string { return t.Format("02/01/2006") },
		"isodate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"year": func() int { return time.Now().Year() },
		"add":  func(a, b int) int { return a + b },
		"sub":  func(a, b int) int { return a - b },
		"until": func(n int) []int {
			out := make([]int, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, i)
			}
			return out
		},
	}
}

func load(name string) (*template.Template, error) {
	baseOnce.Do(detectBase)
	dev := os.Getenv("DEV") == "1"
	if !dev {
		cache.RLock()
		if t, ok := cache.m[name]; ok {
			cache.RUnlock()
			return t, nil
		}
		cache.RUnlock()
	}
	t, err := template.New("layout.html").Funcs(Funcs()).ParseFiles(
		filepath.Join(baseDir, "layout.html"),
		filepath.Join(baseDir, name),
	)
	if err != nil {
		return nil, err
	}
	if !dev {
		cache.Lock()
		cache.m[name] = t
		cache.Unlock()
	}
	return t, nil
}

// Render writes the named page wrapped in the layout. Errors render a
// plain 500 and are returned for logging by the caller.
func Render(w http.ResponseWriter, name string, data map[string]any) error {
	t, err := load(name)
	if err != nil {
		http.Error(w, "erreur template", http.StatusInternalServerError)
		return err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		http.Error(w, "erreur template", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(buf.Bytes())
	return err
}
