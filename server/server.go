package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"discount-harvester/storage"
	"discount-harvester/utils"
)

// RunFunc runs harvest, listing and reconciliation for day, logging
// progress to logger.
type RunFunc func(ctx context.Context, day time.Time, logger utils.EventSink) error

// Server is the HTTP trigger and download front end.
type Server struct {
	dataDir  string
	ext      string
	logLevel string
	run      RunFunc
	logger   utils.EventSink
	now      func() time.Time

	// running serializes runs; the datasets assume a single writer.
	running sync.Mutex
	router  chi.Router
}

// New creates a Server serving files with extension ext (".xlsx" or ".csv")
// from dataDir.
func New(dataDir, ext, logLevel string, run RunFunc, logger utils.EventSink) *Server {
	s := &Server{
		dataDir:  dataDir,
		ext:      ext,
		logLevel: logLevel,
		run:      run,
		logger:   logger,
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/date/{date}", s.handleDate)
	r.Get("/run-all", s.handleRunAll)
	r.Get("/download/{filename}", s.handleDownload)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("[server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("[server] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Discount harvest {{.Date}}</title></head>
<body>
<h1>Discount harvest {{.Date}}</h1>
<p><a href="/run-all">Run harvest for {{.Today}}</a></p>
<ul>
{{range .Files}}<li><a href="/download/{{.}}">{{.}}</a></li>
{{end}}</ul>
<h2>Available dates</h2>
<ul>
{{range .Dates}}<li><a href="/date/{{.}}">{{.}}</a></li>
{{else}}<li>none yet</li>
{{end}}</ul>
</body></html>
`))

type indexView struct {
	Date  string
	Today string
	Files []string
	Dates []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	today := storage.DateStamp(s.now())
	s.renderIndex(w, today, today)
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := storage.ParseDateStamp(date); err != nil {
		http.Error(w, "invalid date, expected YYYYMMDD", http.StatusBadRequest)
		return
	}
	s.renderIndex(w, date, storage.DateStamp(s.now()))
}

func (s *Server) renderIndex(w http.ResponseWriter, date, today string) {
	dates, err := storage.AvailableDates(s.dataDir)
	if err != nil {
		s.logger.Error("[server] list dates: %v", err)
		http.Error(w, "could not list datasets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, indexView{
		Date:  date,
		Today: today,
		Files: s.fileNames(date),
		Dates: dates,
	}); err != nil {
		s.logger.Error("[server] render index: %v", err)
	}
}

// fileNames are the download names of the three datasets of a date.
func (s *Server) fileNames(date string) []string {
	return []string{
		"car_data_" + date + s.ext,
		"car_data_web_" + date + s.ext,
		"discrepancies_" + date + s.ext,
	}
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	if !s.running.TryLock() {
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	}
	defer s.running.Unlock()

	fw := newFlushWriter(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	runID := uuid.New().String()
	day := s.now()
	fmt.Fprintf(fw, "\n==== Run %s for %s ====\n", runID, storage.DateStamp(day))
	s.logger.Info("[server] run %s requested", runID)

	logger, err := utils.NewStreamLogger(fw, s.logLevel)
	if err != nil {
		fmt.Fprintf(fw, "logger setup failed: %v\n", err)
		return
	}

	if err := s.run(r.Context(), day, logger); err != nil {
		fmt.Fprintf(fw, "\n❌ Run %s finished with errors: %v\n", runID, err)
		s.logger.Error("[server] run %s: %v", runID, err)
	} else {
		fmt.Fprintf(fw, "\n✅ All done! Download the results below:\n")
	}
	for _, name := range s.fileNames(storage.DateStamp(day)) {
		fmt.Fprintf(fw, "➡️ /download/%s\n", name)
	}
	s.logger.Info("[server] run %s complete", runID)
}

var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !fileNamePattern.MatchString(name) || strings.Contains(name, "..") {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	dir := s.dataDir
	if strings.Contains(name, "web") || strings.Contains(name, "discrepancies") {
		dir = filepath.Join(s.dataDir, "etc")
	}
	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// flushWriter flushes after every write so progress reaches the client
// while the run is going.
type flushWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	f, _ := w.(http.Flusher)
	return &flushWriter{w: w, f: f}
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
