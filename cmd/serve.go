package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/model"
	"github.com/sells-group/mailsentry/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for run history and single-file processing",
	Long: "Serves run history from the ledger and accepts single files under the input " +
		"directory for processing. Each accepted file is recorded as its own run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		submit := func(runID, path string) {
			runSubmission(ctx, env.Store, env.Processor, runID, path)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Store, submit, apiConfig{
				InputDirectory: cfg.Input.Directory,
				Extensions:     cfg.Input.Extensions,
				CORSOrigins:    cfg.Server.CORSOrigins,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// itemProcessor runs one file; *pipeline.Processor implements it.
type itemProcessor interface {
	Process(ctx context.Context, runID, file string) (*model.ItemResult, error)
}

// apiConfig carries the settings the router needs from cfg.
type apiConfig struct {
	InputDirectory string
	Extensions     []string
	CORSOrigins    []string
}

// errOutsideInput is returned for submitted paths the API refuses to read.
var errOutsideInput = eris.New("path must be a file under the input directory")

// resolveInput returns the absolute path of p when it names a file with an
// allowed extension inside root. Relative paths are taken from root.
func resolveInput(root string, exts []string, p string) (string, error) {
	if root == "" {
		return "", errOutsideInput
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", eris.Wrap(err, "resolve input directory")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(rootAbs, p)
	}
	abs := filepath.Clean(p)
	if !within(rootAbs, abs) {
		return "", errOutsideInput
	}

	// A symlink inside the root must not lead outside it.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		realRoot, rerr := filepath.EvalSymlinks(rootAbs)
		if rerr != nil {
			realRoot = rootAbs
		}
		if !within(realRoot, resolved) {
			return "", errOutsideInput
		}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(abs)), ".")
	for _, e := range exts {
		if ext != "" && ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return abs, nil
		}
	}
	return "", eris.Wrapf(errOutsideInput, "extension %q is not accepted", filepath.Ext(abs))
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// runSubmission processes one accepted file and closes its ledger run.
func runSubmission(ctx context.Context, st store.Store, p itemProcessor, runID, path string) {
	log := zap.L().With(zap.String("file", path), zap.String("run_id", runID))

	item, err := p.Process(ctx, runID, path)
	if err != nil {
		log.Error("api: process failed", zap.Error(err))
	} else {
		log.Info("api: process complete", zap.String("status", string(item.Status)))
	}

	if st == nil || runID == "" {
		return
	}
	var summary model.BatchSummary
	status := model.RunStatusComplete
	if item != nil {
		summary.Add(item.Status)
	}
	if err != nil {
		status = model.RunStatusFailed
	}
	// Shutdown cancels ctx; the ledger update should still land.
	if ferr := st.FinishRun(context.WithoutCancel(ctx), runID, status, &summary); ferr != nil {
		log.Warn("api: finish run failed", zap.Error(ferr))
	}
}

// newRouter builds the API. st may be nil, in which case run routes
// answer 503 and submissions are not recorded. submit runs one accepted
// file in the background.
func newRouter(st store.Store, submit func(runID, path string), api apiConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(api.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: api.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/process", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}

		path, err := resolveInput(api.InputDirectory, api.Extensions, body.Path)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp := map[string]string{
			"status": "accepted",
			"path":   path,
		}
		var runID string
		if st != nil {
			run, err := st.CreateRun(req.Context(), path)
			if err != nil {
				storeError(w, req, err)
				return
			}
			runID = run.ID
			resp["run_id"] = runID
		}

		go submit(runID, path)

		writeJSON(w, http.StatusAccepted, resp)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Use(requireLedger(st))

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			runs, err := st.ListRuns(req.Context(), store.RunFilter{
				Status: model.RunStatus(q.Get("status")),
				Source: q.Get("source"),
				Limit:  limit,
			})
			if err != nil {
				storeError(w, req, err)
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				storeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/{id}/items", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			offset, _ := strconv.Atoi(q.Get("offset"))
			items, err := st.ListItems(req.Context(), chi.URLParam(req, "id"), store.ItemFilter{
				Status: model.ItemStatus(q.Get("status")),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				storeError(w, req, err)
				return
			}
			if items == nil {
				items = []model.ItemResult{}
			}
			writeJSON(w, http.StatusOK, items)
		})
	})

	return r
}

func requireLedger(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func storeError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("api: store error",
		zap.String("path", req.URL.Path),
		zap.String("request_id", middleware.GetReqID(req.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
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
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
