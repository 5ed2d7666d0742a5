package transport

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"batch-edit-engine/internal/errors"
	"batch-edit-engine/internal/models"
	"batch-edit-engine/internal/service"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 60 * time.Second
	// Batches embed full replacement content, so the request cap is
	// generous relative to the per-file size limit.
	defaultMaxRequestSizeMB = 50
)

// HTTPHandler exposes the batch edit service over HTTP POST endpoints.
type HTTPHandler struct {
	service      service.BatchEditService
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxReqSize   int64
	Server       *http.Server
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(svc service.BatchEditService) *HTTPHandler {
	return &HTTPHandler{
		service:      svc,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		maxReqSize:   int64(defaultMaxRequestSizeMB) * 1024 * 1024,
		Server:       &http.Server{},
	}
}

// RegisterRoutes sets up the HTTP routes for the handler.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/apply_edits", handlePost(h, h.service.ApplyEdits))
	mux.HandleFunc("/preview_edits", handlePost(h, func(req models.ApplyEditsRequest) (*models.ApplyEditsResponse, *models.ErrorDetail) {
		req.DryRun = true
		return h.service.ApplyEdits(req)
	}))
	mux.HandleFunc("/read_file", handlePost(h, h.service.ReadFile))
	mux.HandleFunc("/list_files", handlePost(h, h.service.ListFiles))
	mux.HandleFunc("/history/list", handlePost(h, h.service.HistoryList))
	mux.HandleFunc("/history/restore", handlePost(h, h.service.HistoryRestore))
	mux.HandleFunc("/health", h.handleHealthCheck)
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

func writeJSONErrorResponse(w http.ResponseWriter, httpStatusCode int, errDetail *models.ErrorDetail) {
	if errDetail == nil {
		errDetail = errors.NewInternalError("An unexpected error occurred and error details were lost.")
		httpStatusCode = http.StatusInternalServerError
	}
	writeJSONResponse(w, httpStatusCode, models.ErrorResponse{Error: *errDetail})
}

func (h *HTTPHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePost wraps one service method with the shared POST plumbing:
// method and content-type checks, size-capped strict JSON decoding, and
// error-to-status mapping.
func handlePost[Req any, Resp any](h *HTTPHandler, call func(Req) (Resp, *models.ErrorDetail)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			errDetail := errors.NewInvalidRequestError(fmt.Sprintf("Method %s not allowed. Use POST.", r.Method))
			writeJSONErrorResponse(w, http.StatusMethodNotAllowed, errDetail)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			errDetail := errors.NewInvalidRequestError("Invalid Content-Type header. Must be 'application/json'.")
			writeJSONErrorResponse(w, http.StatusUnsupportedMediaType, errDetail)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, h.maxReqSize)
		defer r.Body.Close()

		var req Req
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeDecodeError(w, err)
			return
		}

		resp, serviceErr := call(req)
		if serviceErr != nil {
			writeJSONErrorResponse(w, errors.MapErrorToHTTPStatus(serviceErr.Code, serviceErr), serviceErr)
			return
		}
		writeJSONResponse(w, http.StatusOK, resp)
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError
	switch {
	case stdErrors.As(err, &maxBytesErr):
		errDetail := errors.NewInvalidRequestError(
			fmt.Sprintf("Request body exceeds maximum size of %dMB.", defaultMaxRequestSizeMB))
		writeJSONErrorResponse(w, http.StatusRequestEntityTooLarge, errDetail)
	case stdErrors.As(err, &syntaxErr):
		errDetail := errors.NewParseError(
			fmt.Sprintf("Invalid JSON syntax at offset %d: %s", syntaxErr.Offset, syntaxErr.Error()))
		writeJSONErrorResponse(w, http.StatusBadRequest, errDetail)
	case stdErrors.As(err, &typeErr):
		errDetail := errors.NewParseError(
			fmt.Sprintf("Invalid JSON type for field '%s' at offset %d.", typeErr.Field, typeErr.Offset))
		writeJSONErrorResponse(w, http.StatusBadRequest, errDetail)
	default:
		errDetail := errors.NewParseError(fmt.Sprintf("Failed to decode request body: %v", err))
		writeJSONErrorResponse(w, http.StatusBadRequest, errDetail)
	}
}

// StartServer configures and starts the HTTP server. It blocks until the
// server stops; http.ErrServerClosed (graceful shutdown) is not an error.
func (h *HTTPHandler) StartServer(port int, readTimeoutSec, writeTimeoutSec int) error {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	readTimeout := h.readTimeout
	if readTimeoutSec > 0 {
		readTimeout = time.Duration(readTimeoutSec) * time.Second
	}
	writeTimeout := h.writeTimeout
	if writeTimeoutSec > 0 {
		writeTimeout = time.Duration(writeTimeoutSec) * time.Second
	}

	h.Server.Addr = fmt.Sprintf(":%d", port)
	h.Server.Handler = mux
	h.Server.ReadTimeout = readTimeout
	h.Server.WriteTimeout = writeTimeout

	log.Printf("HTTP server starting on port %d (ReadTimeout: %s, WriteTimeout: %s)", port, readTimeout, writeTimeout)
	err := h.Server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Printf("HTTP server ListenAndServe error: %v", err)
		return err
	}
	log.Printf("HTTP server on port %d shut down.", port)
	return nil
}
