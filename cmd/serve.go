package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/runner"
	"github.com/willregister/admin-cli/internal/store"
	"github.com/willregister/admin-cli/internal/upload"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		api := &apiServer{
			store:  st,
			runner: runner.NewWithRate(st, rate.Limit(cfg.Jobs.BatchesPerSec)),
			queue:  make(chan string, 64),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("admin api listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		// Upload jobs run one at a time off a queue so progress stays
		// pollable while the server keeps serving.
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case jobID := <-api.queue:
					if err := api.runner.Run(gctx, jobID); err != nil {
						zap.L().Error("job run failed", zap.String("job_id", jobID), zap.Error(err))
					}
				}
			}
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

type apiServer struct {
	store  store.Store
	runner *runner.Runner
	queue  chan string
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads/validate", a.handleValidate)
		r.Post("/jobs", a.handleCreateJob)
		r.Get("/jobs", a.handleListJobs)
		r.Get("/jobs/{id}", a.handleGetJob)
		r.Post("/jobs/{id}/cancel", a.handleCancelJob)
		r.Post("/jobs/{id}/retry", a.handleRetryJob)
		r.Get("/jobs/{id}/failed.csv", a.handleFailedCSV)
	})

	return r
}

// validateResponse is the review payload for the upload wizard: detected
// mappings, per-row outcomes, and bulk-fix previews for the two recognised
// error classes.
type validateResponse struct {
	Columns   []string                `json:"columns"`
	Mappings  []model.ColumnMapping   `json:"mappings"`
	Problems  []upload.MappingProblem `json:"problems,omitempty"`
	Summary   upload.Summary          `json:"summary"`
	Rows      []model.ValidatedRow    `json:"rows"`
	Postcodes []upload.FixPreview     `json:"postcode_fixes,omitempty"`
	Dates     []upload.FixPreview     `json:"date_fixes,omitempty"`
}

func (a *apiServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(cfg.Jobs.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, cfg.Jobs.MaxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	parsed, err := upload.ParseCSV(data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	mappings := upload.DetectColumnMapping(parsed.Columns)
	problems := upload.CheckMappings(mappings)
	rows, summary := upload.ValidateRows(parsed.Rows, mappings)

	writeJSON(w, http.StatusOK, validateResponse{
		Columns:   parsed.Columns,
		Mappings:  mappings,
		Problems:  problems,
		Summary:   summary,
		Rows:      rows,
		Postcodes: upload.PreviewPostcodeFix(rows),
		Dates:     upload.PreviewDateFix(rows),
	})
}

type createJobRequest struct {
	FirmID   string              `json:"firm_id"`
	FirmName string              `json:"firm_name"`
	UserID   string              `json:"user_id"`
	UserName string              `json:"user_name"`
	FileName string              `json:"file_name"`
	Records  []map[string]string `json:"records"`
}

func (a *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirmID == "" {
		writeError(w, http.StatusBadRequest, "firm_id is required")
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records are required")
		return
	}

	job := model.NewUploadJob("bulk_will_upload", req.FirmID, req.FirmName,
		req.UserID, req.UserName, req.FileName, req.Records)
	created, err := a.store.CreateJob(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	select {
	case a.queue <- created.ID:
	default:
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}

	writeJSON(w, http.StatusAccepted, created)
}

func (a *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.store.ListJobs(r.Context(), store.JobFilter{
		Status: model.JobStatus(r.URL.Query().Get("status")),
		FirmID: r.URL.Query().Get("firm_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *apiServer) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.store.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *apiServer) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.store.RequeueJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	select {
	case a.queue <- job.ID:
	default:
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (a *apiServer) handleFailedCSV(w http.ResponseWriter, r *http.Request) {
	job, err := a.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job_%s_failed.csv"`, job.ID))
	if err := upload.WriteFailedRecordsCSV(w, job.Errors); err != nil {
		zap.L().Error("failed-records export", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
