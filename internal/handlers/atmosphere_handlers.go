package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"terra-platform/internal/export"
	"terra-platform/internal/models"
	"terra-platform/internal/pipeline"
	"terra-platform/internal/services"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

// Route paths
const (
	SeriesPath       = "/api/mopitt/series"
	ObservationsPath = "/api/mopitt/observations"
	ExportPath       = "/api/mopitt/export.xlsx"
	HealthPath       = "/health"
)

// AtmosphereHandler handles MOPITT API endpoints
type AtmosphereHandler struct {
	service       *services.AtmosphereService
	defaultWindow pipeline.Window
	validate      *validator.Validate
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// NewAtmosphereHandler creates a new atmosphere handler. defaultWindow is
// used for whichever of start_date/end_date the request omits.
func NewAtmosphereHandler(
	service *services.AtmosphereService,
	defaultWindow pipeline.Window,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AtmosphereHandler {
	return &AtmosphereHandler{
		service:       service,
		defaultWindow: defaultWindow,
		validate:      validator.New(),
		logger:        logger,
		metrics:       metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

type pageQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=1000"`
}

// GetSeries handles GET /api/mopitt/series
func (h *AtmosphereHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration(SeriesPath, time.Now())

	window, err := h.parseWindow(r)
	if err != nil {
		h.sendValidationError(w, r, err)
		return
	}

	result, err := h.service.Series(ctx, window)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SERIES_ERROR] Failed to compute series", logging.Fields{
			"window": window.String(),
		}, err)
		h.metrics.RecordAPIError("internal_error", SeriesPath)
		h.sendError(w, r, "failed to compute series", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest(SeriesPath, "GET", "200")
	h.sendJSON(w, r, result, http.StatusOK)
}

// GetObservations handles GET /api/mopitt/observations
func (h *AtmosphereHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration(ObservationsPath, time.Now())

	window, err := h.parseWindow(r)
	if err != nil {
		h.sendValidationError(w, r, err)
		return
	}

	page, err := h.parsePage(r)
	if err != nil {
		h.sendValidationError(w, r, err)
		return
	}

	observations, err := h.service.Observations(ctx, window)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OBSERVATIONS_ERROR] Failed to get observations", logging.Fields{
			"window": window.String(),
		}, err)
		h.metrics.RecordAPIError("internal_error", ObservationsPath)
		h.sendError(w, r, "failed to retrieve observations", http.StatusInternalServerError)
		return
	}

	total := len(observations)
	offset := min((page.Page-1)*page.Limit, total)
	end := min(offset+page.Limit, total)

	response := PaginatedResponse{
		Data:       observations[offset:end],
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: (total + page.Limit - 1) / page.Limit,
	}

	h.metrics.RecordAPIRequest(ObservationsPath, "GET", "200")
	h.sendJSON(w, r, response, http.StatusOK)
}

// ExportSeries handles GET /api/mopitt/export.xlsx
func (h *AtmosphereHandler) ExportSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeDuration(ExportPath, time.Now())

	window, err := h.parseWindow(r)
	if err != nil {
		h.sendValidationError(w, r, err)
		return
	}

	result, err := h.service.Series(ctx, window)
	if err != nil {
		h.logger.Error(ctx, "[API_EXPORT_ERROR] Failed to compute series", logging.Fields{
			"window": window.String(),
		}, err)
		h.metrics.RecordAPIError("internal_error", ExportPath)
		h.sendError(w, r, "failed to compute series", http.StatusInternalServerError)
		return
	}

	// Buffer so a failed render can still produce a JSON error
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, result); err != nil {
		h.logger.Error(ctx, "[API_EXPORT_ERROR] Failed to render workbook", logging.Fields{}, err)
		h.metrics.RecordAPIError("export_error", ExportPath)
		h.sendError(w, r, "failed to render workbook", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("mopitt_%s_%s.xlsx", result.StartDate, result.EndDate)
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	h.metrics.RecordAPIRequest(ExportPath, "GET", "200")
}

// HealthCheck handles GET /health
func (h *AtmosphereHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.service.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Observation source unavailable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, r, status, code)
}

// parseWindow reads start_date/end_date, defaulting each independently
func (h *AtmosphereHandler) parseWindow(r *http.Request) (pipeline.Window, error) {
	window := h.defaultWindow
	query := r.URL.Query()

	if s := query.Get("start_date"); s != "" {
		start, err := pipeline.ParseDate("start_date", s)
		if err != nil {
			return pipeline.Window{}, err
		}
		window.Start = start
	}

	if s := query.Get("end_date"); s != "" {
		end, err := pipeline.ParseDate("end_date", s)
		if err != nil {
			return pipeline.Window{}, err
		}
		window.End = end
	}

	return window, nil
}

// parsePage reads page/limit with defaults 1 and 100
func (h *AtmosphereHandler) parsePage(r *http.Request) (pageQuery, error) {
	page := pageQuery{Page: 1, Limit: 100}
	query := r.URL.Query()

	for name, dest := range map[string]*int{"page": &page.Page, "limit": &page.Limit} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return page, &models.ValidationError{Field: name, Value: raw, Message: fmt.Sprintf("invalid %s, expected integer", name)}
		}
		*dest = v
	}

	if err := h.validate.Struct(page); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return page, &models.ValidationError{
				Field:   fe.Field(),
				Value:   fmt.Sprint(fe.Value()),
				Message: fmt.Sprintf("invalid %s, must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()),
			}
		}
		return page, err
	}

	return page, nil
}

func (h *AtmosphereHandler) observeDuration(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response. A value that cannot be encoded is logged
// and answered with 500 instead of an empty success.
func (h *AtmosphereHandler) sendJSON(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	if err := writeJSON(w, data, statusCode); err != nil {
		h.logger.Error(r.Context(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{
			"path": r.URL.Path,
		}, err)
		h.metrics.RecordAPIError("encode_error", r.URL.Path)
		h.sendError(w, r, "failed to encode response", http.StatusInternalServerError)
	}
}

// sendValidationError maps boundary input errors to 400
func (h *AtmosphereHandler) sendValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.metrics.RecordAPIError("validation_error", r.URL.Path)
		h.sendError(w, r, validationErr.Message, http.StatusBadRequest)
		return
	}
	h.metrics.RecordAPIError("internal_error", r.URL.Path)
	h.sendError(w, r, err.Error(), http.StatusInternalServerError)
}

// sendError sends an error response
func (h *AtmosphereHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))
	writeError(w, message, statusCode)
}

// RegisterRoutes registers the MOPITT API, health and docs routes. The
// middleware applies to the /api/mopitt routes only.
func (h *AtmosphereHandler) RegisterRoutes(router *mux.Router, middleware ...mux.MiddlewareFunc) {
	api := router.PathPrefix("/api/mopitt").Subrouter()
	api.Use(middleware...)
	api.HandleFunc("/series", h.GetSeries).Methods("GET")
	api.HandleFunc("/observations", h.GetObservations).Methods("GET")
	api.HandleFunc("/export.xlsx", h.ExportSeries).Methods("GET")

	router.HandleFunc(HealthPath, h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}

// writeJSON encodes data before touching w, so an encoding error leaves the
// response unwritten
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
	return nil
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	_ = writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}
