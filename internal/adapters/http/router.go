package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/core/ports"
	"github.com/kirillkom/docverify/internal/observability/metrics"
)

const (
	defaultService        = "api"
	defaultMaxUploadBytes = 20 << 20
	multipartMemory       = 8 << 20
	defaultAcquireTimeout = 250 * time.Millisecond
)

type Dependencies struct {
	Submitter ports.DocumentSubmitter
	Stager    ports.DocumentStager
	Processor ports.AnalysisProcessor
	Reader    ports.AnalysisReader
	Metrics   *metrics.HTTPServerMetrics
	Logger    *slog.Logger

	// Downloader is optional; without it the download route is not served.
	Downloader ports.DocumentDownloader
}

type Options struct {
	Service            string
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxInFlight        int
	AcquireTimeout     time.Duration
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

type Router struct {
	deps Dependencies
	opts Options
}

func NewRouter(deps Dependencies, opts Options) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = defaultService
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaultAcquireTimeout
	}
	return &Router{deps: deps, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(requestIDMiddleware)
	mux.Use(accessLogMiddleware(rt.deps.Logger))
	if len(rt.opts.CORSAllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, "Retry-After"},
			MaxAge:         300,
		}))
	}
	if rt.deps.Metrics != nil {
		mux.Use(func(next http.Handler) http.Handler {
			return rt.deps.Metrics.Middleware(rt.opts.Service, next)
		})
		mux.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	mux.Get("/healthz", rt.healthz)
	mux.Get("/v1/openapi.json", rt.openAPI)

	limit := rateLimitMiddleware(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.rejected("rate_limited"))
	gate := backpressureMiddleware(rt.opts.MaxInFlight, rt.opts.AcquireTimeout, rt.rejected("overloaded"))
	mux.Group(func(r chi.Router) {
		r.Use(limit, gate)

		r.Post("/v1/documents", rt.submitDocument)
		r.Post("/v1/analyses", rt.analyzeDocument)
		r.Get("/v1/documents/{documentID}/analysis", rt.getAnalysisByDocument)
		if rt.deps.Downloader != nil {
			r.Get("/v1/documents/{documentID}/download", rt.downloadDocument)
		}
		r.Get("/v1/users/{userID}/analyses", rt.listAnalysesByUser)
		r.Get("/v1/users/{userID}/analyses/stats", rt.statsByUser)
		r.Get("/v1/users/{userID}/analyses/export.xlsx", rt.exportByUser)
	})

	return mux
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	upload, err := rt.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer upload.file.Close()

	req, err := rt.deps.Submitter.Submit(r.Context(), upload.userID, upload.filename, upload.file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

// analyzeDocument stages the upload and runs the full pipeline inline.
func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	upload, err := rt.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer upload.file.Close()

	start := time.Now()
	req, err := rt.deps.Stager.Stage(r.Context(), upload.userID, upload.filename, upload.file)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := rt.deps.Processor.Process(r.Context(), *req)
	if err != nil {
		rt.recordAnalysis(domain.KindOf(err), start)
		rt.deps.Logger.Warn("analysis_failed",
			"request_id", requestIDFromContext(r.Context()),
			"document_id", req.DocumentID,
			"user_id", req.UserID,
			"error_kind", domain.KindOf(err),
			"error", err,
		)
		writeError(w, err)
		return
	}
	rt.recordAnalysis(string(rec.Status), start)
	writeJSON(w, http.StatusCreated, rec)
}

func (rt *Router) getAnalysisByDocument(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(chi.URLParam(r, "documentID"))
	if documentID == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "get analysis", errors.New("document id is required")))
		return
	}

	rec, err := rt.deps.Reader.GetByDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	dl, err := rt.deps.Downloader.Download(r.Context(), strings.TrimSpace(chi.URLParam(r, "documentID")))
	if err != nil {
		writeError(w, err)
		return
	}
	defer dl.Body.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(dl.Filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		rt.deps.Logger.Warn("document_download_interrupted", "document_id", chi.URLParam(r, "documentID"), "error", err)
	}
}

func (rt *Router) listAnalysesByUser(w http.ResponseWriter, r *http.Request) {
	records, err := rt.deps.Reader.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (rt *Router) statsByUser(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.deps.Reader.StatsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) exportByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	records, err := rt.deps.Reader.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="analyses_%s.xlsx"`, sanitizeHeaderToken(userID)))
	if err := writeAnalysesWorkbook(w, userID, records, domain.ComputeStats(records)); err != nil {
		rt.deps.Logger.Error("export_failed", "user_id", userID, "error", err)
	}
}

type upload struct {
	userID   string
	filename string
	file     multipart.File
}

func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse upload", err)
	}

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse upload", errors.New("form field 'user_id' is required"))
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse upload", errors.New("multipart field 'file' is required"))
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.ObserveUpload(rt.opts.Service, header.Size)
	}
	return &upload{userID: userID, filename: header.Filename, file: file}, nil
}

func (rt *Router) recordAnalysis(outcome string, start time.Time) {
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordAnalysis(rt.opts.Service, outcome, time.Since(start))
	}
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.deps.Metrics != nil {
			rt.deps.Metrics.RecordRejected(rt.opts.Service, reason)
		}
	}
}

func sanitizeHeaderToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
