package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gobeaver/filesniff"
	"github.com/gobeaver/filesniff/policy"
)

// maxUploadSize bounds request bodies that are buffered for nested
// classification. Plain uploads are streamed and only sampled.
const maxUploadSize = 64 << 20

// newRouter exposes the sniffer over HTTP:
//
//	POST /v1/classify      classify the request body
//	GET  /v1/classify/*    classify a store object
//	GET  /healthz
//
// Both classify routes accept ?nested=1; the GET route also accepts ?check=1.
func newRouter(s *filesniff.Sniffer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	h := &handler{sniffer: s, logger: logger}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/v1/classify", func(r chi.Router) {
		r.Post("/", h.classifyBody)
		r.Get("/*", h.classifyPath)
	})
	return r
}

type handler struct {
	sniffer *filesniff.Sniffer
	logger  *slog.Logger
}

func (h *handler) classifyBody(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}

	var (
		res filesniff.Result
		err error
	)
	if flag(r, "nested") {
		var body []byte
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		res, err = h.sniffer.ClassifyNestedBytes(r.Context(), body)
		if err == nil {
			res.Path = name
		}
	} else {
		res, err = h.sniffer.ClassifySource(r.Context(), filesniff.FromReader(name, r.Body))
		res.Path = name
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(res))
}

func (h *handler) classifyPath(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")
	if p == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	var (
		res filesniff.Result
		err error
	)
	switch {
	case flag(r, "check"):
		res, err = h.sniffer.Check(r.Context(), p)
	case flag(r, "nested"):
		res, err = h.sniffer.ClassifyNested(r.Context(), p)
	default:
		res, err = h.sniffer.Classify(r.Context(), p)
	}
	if err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			res.Err = err
			writeJSON(w, http.StatusUnprocessableEntity, toJSON(res))
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(res))
}

func flag(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func statusFor(err error) int {
	switch {
	case filesniff.IsNotExist(err):
		return http.StatusNotFound
	case filesniff.IsNotAllowed(err):
		return http.StatusForbidden
	case errors.Is(err, filesniff.ErrIsDir):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, addr string, s *filesniff.Sniffer, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(s, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
