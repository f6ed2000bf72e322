package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path"

	"human-guard/internal/domain/entity"
)

var pageNames = []string{"home.html", "detect.html", "login.html", "profile.html"}

// pageData общие данные шаблона страницы
type pageData struct {
	Title   string
	Active  string
	Account *entity.Account
	HideNav bool
	Flashes []string
	Refresh int // секунд до автообновления, 0 выключено
	Data    any
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(files fs.FS) (*renderer, error) {
	funcs := template.FuncMap{
		"displayName": func(a *entity.Account) string { return a.DisplayName() },
	}

	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(files,
			path.Join("templates", "layout.html"),
			path.Join("templates", name))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

func (r *renderer) render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := r.pages[name]
	if !ok {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
