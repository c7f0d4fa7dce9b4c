// Пакет templates — встроенные html/template шаблоны страниц консоли.
// Каждая страница собирается из layout.html + свой файл в pages/.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
)

//go:embed layout.html pages/*.html
var templatesFS embed.FS

// Renderer — рендерер страниц консоли.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// Имена страниц консоли.
const (
	PageLogin     = "login"
	PageSetup     = "setup"
	PageDashboard = "dashboard"
	PageHosts     = "hosts"
	PagePackages  = "packages"
	PageUsers     = "users"
	PageProfile   = "profile"
	PageSettings  = "settings"
)

// pageFiles — страницы и их файлы шаблонов.
var pageFiles = map[string]string{
	PageLogin:     "pages/login.html",
	PageSetup:     "pages/setup.html",
	PageDashboard: "pages/dashboard.html",
	PageHosts:     "pages/hosts.html",
	PagePackages:  "pages/packages.html",
	PageUsers:     "pages/users.html",
	PageProfile:   "pages/profile.html",
	PageSettings:  "pages/settings.html",
}

// funcs — вспомогательные функции шаблонов (пагинация).
var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}

// New парсит встроенные шаблоны и создаёт рендерер.
func New(logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageFiles))

	for name, file := range pageFiles {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга шаблона %s: %w", file, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{
		pages:  pages,
		logger: logger.With(slog.String("component", "templates")),
	}, nil
}

// Render рендерит страницу в ResponseWriter.
// Ошибка рендеринга логируется и возвращает 500.
func (r *Renderer) Render(w http.ResponseWriter, page string, data any) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("Неизвестная страница", slog.String("page", page))
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		r.logger.Error("Ошибка рендеринга страницы",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// RenderTo рендерит страницу в произвольный Writer (для тестов).
func (r *Renderer) RenderTo(w io.Writer, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("неизвестная страница: %s", page)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
