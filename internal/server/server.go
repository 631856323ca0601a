package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Squarts/web/internal/result"
	"github.com/Squarts/web/internal/store"
	"github.com/Squarts/web/internal/task"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"flag": func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	},
}).ParseFS(templateFS, "templates/*.html"))

type Server struct {
	tasks    *task.Manager
	exporter *result.Exporter
	log      *slog.Logger
}

func New(st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		tasks:    task.NewManager(st),
		exporter: result.NewExporter(st),
		log:      logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.php", s.handleIndex)
	mux.HandleFunc("GET /add.php", s.handleAddForm)
	mux.HandleFunc("POST /add.php", s.handleAdd)
	mux.HandleFunc("GET /update.php", s.handleUpdateForm)
	mux.HandleFunc("POST /update.php", s.handleUpdate)
	mux.HandleFunc("GET /delete.php", s.handleDelete)
	mux.HandleFunc("GET /export", s.handleExport)
	return s.logRequests(mux)
}

func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully and returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	server := &http.Server{Handler: s.Handler()}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- server.Shutdown(sctx)
	}()
	s.log.Info("listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		s.log.Error("shutdown failed", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	all, err := s.tasks.List(r.Context())
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.render(w, http.StatusOK, "index.html", all)
}

type formPage struct {
	Heading  string
	Action   string
	Submit   string
	Task     store.Task
	Deadline string
	Error    string
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "form.html", formPage{Heading: "Add Task", Action: "add.php", Submit: "Add"})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.tasks.Create(r.Context(), r.PostForm)
	if err != nil {
		if !errors.Is(err, task.ErrInvalid) {
			s.writeErr(w, http.StatusInternalServerError, err)
			return
		}
		s.render(w, http.StatusBadRequest, "form.html", formPage{
			Heading: "Add Task", Action: "add.php", Submit: "Add",
			Task:     store.Task{Title: r.PostForm.Get("title"), Description: r.PostForm.Get("description")},
			Deadline: r.PostForm.Get("deadline"),
			Error:    err.Error(),
		})
		return
	}
	s.log.Debug("task added", "id", id)
	http.Redirect(w, r, "index.php", http.StatusSeeOther)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.writeStoreErr(w, err)
		return
	}
	s.render(w, http.StatusOK, "form.html", formPage{
		Heading:  "Edit Task",
		Action:   fmt.Sprintf("update.php?id=%d", id),
		Submit:   "Update",
		Task:     t,
		Deadline: task.FormValue(t.Deadline),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}
	err := s.tasks.Update(r.Context(), id, r.PostForm)
	switch {
	case err == nil:
		s.log.Debug("task updated", "id", id)
		http.Redirect(w, r, "index.php", http.StatusSeeOther)
	case !errors.Is(err, task.ErrInvalid):
		s.writeStoreErr(w, err)
	default:
		s.render(w, http.StatusBadRequest, "form.html", formPage{
			Heading: "Edit Task", Action: fmt.Sprintf("update.php?id=%d", id), Submit: "Update",
			Task:     store.Task{ID: id, Title: r.PostForm.Get("title"), Description: r.PostForm.Get("description")},
			Deadline: r.PostForm.Get("deadline"),
			Error:    err.Error(),
		})
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.writeStoreErr(w, err)
		return
	}
	s.log.Debug("task deleted", "id", id)
	http.Redirect(w, r, "index.php", http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	b, err := s.exporter.Export(r.Context(), format)
	if errors.Is(err, result.ErrUnknownFormat) {
		s.writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", result.ContentType(format))
	_, _ = w.Write(b)
}

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, errStr("invalid task id"))
		return 0, false
	}
	return id, true
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeErr(w, http.StatusNotFound, errStr("task not found"))
		return
	}
	s.writeErr(w, http.StatusInternalServerError, err)
}

func (s *Server) writeErr(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", code, "error", err)
	}
	http.Error(w, err.Error(), code)
}

type errStr string

func (e errStr) Error() string { return string(e) }
