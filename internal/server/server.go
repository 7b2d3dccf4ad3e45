// Package server is the HTTP front of a job database: HTML pages for
// browsing jobs and previewing units, plus a JSON API that speaks the same
// contract as the annotation session manager.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"unitcoder/internal/codebook"
	"unitcoder/internal/database"
	"unitcoder/internal/job"
	"unitcoder/internal/token"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing and coding jobs.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "job.html", "unit.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// HTML pages
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/job/", s.handleJob)

	// JSON API
	s.mux.HandleFunc("/api/jobs", s.handleAPIJobs)
	s.mux.HandleFunc("/api/job/", s.handleAPIJob)
}

type jobRow struct {
	Name     string
	Units    int
	Sessions int
	Created  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	jobs, err := s.db.GetAllJobs()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]jobRow, 0, len(jobs))
	for _, j := range jobs {
		row := jobRow{Name: j.Name}
		if j.CreatedAt != nil {
			row.Created = *j.CreatedAt
		}
		row.Units, _ = s.db.CountUnits(j.ID)
		sessions, _ := s.db.GetSessionsForJob(j.ID)
		row.Sessions = len(sessions)
		rows = append(rows, row)
	}

	s.render(w, "index.html", map[string]any{
		"Jobs": rows,
	})
}

// handleJob dispatches /job/<name> and /job/<name>/unit/<position>.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/job/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleJobDetail(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "unit":
		pos, err := strconv.Atoi(parts[2])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		s.handleUnitPreview(w, r, parts[0], pos)
	default:
		http.NotFound(w, r)
	}
}

type phaseView struct {
	Name      string
	Type      codebook.PhaseType
	Variables []*codebook.Variable
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request, name string) {
	j, err := s.db.GetJob(name)
	if err != nil || j == nil {
		http.NotFound(w, r)
		return
	}

	cb, err := codebook.Parse([]byte(j.CodebookYAML))
	if err != nil {
		http.Error(w, "Invalid codebook", http.StatusInternalServerError)
		return
	}

	var phases []phaseView
	for _, p := range cb.Phases() {
		pv := phaseView{Name: p.Name, Type: p.PhaseType}
		for _, leaf := range cb.PhaseLeaves(p.ID) {
			pv.Variables = append(pv.Variables, leaf.Data.Variable)
		}
		phases = append(phases, pv)
	}

	units, _ := s.db.GetUnitsForJob(j.ID)
	sessions, _ := s.db.GetSessionsForJob(j.ID)

	s.render(w, "job.html", map[string]any{
		"Job":      j,
		"Phases":   phases,
		"Units":    units,
		"Sessions": sessions,
	})
}

type fieldView struct {
	Name string
	HTML template.HTML
}

func (s *Server) handleUnitPreview(w http.ResponseWriter, r *http.Request, name string, pos int) {
	j, err := s.db.GetJob(name)
	if err != nil || j == nil {
		http.NotFound(w, r)
		return
	}
	unit, err := s.db.GetUnitAt(j.ID, pos)
	if err != nil || unit == nil {
		http.NotFound(w, r)
		return
	}

	var fields []token.Field
	if err := json.Unmarshal([]byte(unit.FieldsJSON), &fields); err != nil {
		http.Error(w, "Invalid unit", http.StatusInternalServerError)
		return
	}

	views := make([]fieldView, 0, len(fields))
	for _, f := range fields {
		if f.Markdown {
			views = append(views, fieldView{Name: f.Name, HTML: renderMarkdown(f.Value)})
		} else {
			views = append(views, fieldView{Name: f.Name, HTML: template.HTML(template.HTMLEscapeString(f.Value))})
		}
	}

	s.render(w, "unit.html", map[string]any{
		"Job":      j,
		"Unit":     unit,
		"Fields":   views,
		"NTokens":  len(token.Parse(fields)),
		"Position": pos,
	})
}

func (s *Server) handleAPIJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.db.GetAllJobs()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type apiJob struct {
		Name  string `json:"name"`
		Units int    `json:"units"`
	}
	out := make([]apiJob, 0, len(jobs))
	for _, j := range jobs {
		n, _ := s.db.CountUnits(j.ID)
		out = append(out, apiJob{Name: j.Name, Units: n})
	}
	writeJSON(w, out)
}

// handleAPIJob dispatches /api/job/<name>/{codebook,session,unit/<n>,annotations}.
func (s *Server) handleAPIJob(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/api/job/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	name, rest := parts[0], parts[1]

	j, err := s.db.GetJob(name)
	if err != nil || j == nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case rest == "codebook":
		w.Header().Set("Content-Type", "application/yaml")
		fmt.Fprint(w, j.CodebookYAML)

	case rest == "session":
		s.handleAPISession(w, r, name)

	case strings.HasPrefix(rest, "unit/"):
		pos, err := strconv.Atoi(strings.TrimPrefix(rest, "unit/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		s.handleAPIUnit(w, r, name, pos)

	case rest == "annotations":
		s.handleAPIAnnotations(w, r, name)

	default:
		http.NotFound(w, r)
	}
}

// handleAPISession opens (or resumes) a session and returns its state.
func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request, name string) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, "missing token parameter", http.StatusBadRequest)
		return
	}
	ls, err := job.NewLocalServer(s.db, name, tok, r.URL.Query().Get("coder"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, err := ls.GetSession(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sess)
}

func (s *Server) handleAPIUnit(w http.ResponseWriter, r *http.Request, name string, pos int) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, "missing token parameter", http.StatusBadRequest)
		return
	}
	phase := 0
	if p := r.URL.Query().Get("phase"); p != "" {
		var err error
		phase, err = strconv.Atoi(p)
		if err != nil {
			http.Error(w, "bad phase parameter", http.StatusBadRequest)
			return
		}
	}

	ls, err := job.NewLocalServer(s.db, name, tok, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, err := ls.GetUnit(r.Context(), phase, pos)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, u)
}

// handleAPIAnnotations accepts a flush batch from a remote coding client.
func (s *Server) handleAPIAnnotations(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload job.PostPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if payload.SessionToken == "" {
		http.Error(w, "missing session token", http.StatusBadRequest)
		return
	}

	ls, err := job.NewLocalServer(s.db, name, payload.SessionToken, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Ensure the session row exists before annotations reference it.
	if _, err := ls.GetSession(r.Context()); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := ls.PostAnnotations(r.Context(), payload); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
