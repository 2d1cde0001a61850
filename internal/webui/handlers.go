package webui

import (
	"encoding/csv"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"lodging/internal/report"
	"lodging/internal/table"
)

var funcs = template.FuncMap{
	"records": func(t *table.Table) [][]string { return t.Records() },
	"num":     func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) },
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Report  string    `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SessionResponse{
		ID:      sess.ID,
		Created: sess.Created,
		Report:  "/api/sessions/" + sess.ID + "/report",
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, r, errUnknownSession)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := s.render(r, sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// handleTable streams one table of the session's last render as CSV.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res := sess.Last()
	if res == nil {
		writeError(w, r, errNotRendered)
		return
	}
	name := chi.URLParam(r, "name")
	for _, nt := range res.Tables() {
		if nt.Name != name {
			continue
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(nt.Table.Records()); err != nil {
			log.Printf("webui: write %s: %v", name, err)
		}
		return
	}
	writeError(w, r, errUnknownTable)
}

// pageData feeds index.tmpl.html.
type pageData struct {
	Sessions  int
	SessionID string
	Result    *report.Result
	Tables    []table.Named
	Error     string
	Class     string
}

func (s *Server) page(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.Execute(w, data); err != nil {
		log.Println("webui: template error:", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.page(w, http.StatusOK, pageData{Sessions: s.sessions.Len()})
}

func (s *Server) handleNewSessionPage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	http.Redirect(w, r, "/sessions/"+sess.ID, http.StatusSeeOther)
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		status, class := classify(errUnknownSession)
		s.page(w, status, pageData{Sessions: s.sessions.Len(), Error: errUnknownSession.Error(), Class: class})
		return
	}
	data := pageData{Sessions: s.sessions.Len(), SessionID: id}
	res, err := s.render(r, sess)
	if err != nil {
		status, class := classify(err)
		data.Error, data.Class = err.Error(), class
		s.page(w, status, data)
		return
	}
	data.Result = res
	data.Tables = res.Tables()
	s.page(w, http.StatusOK, data)
}
