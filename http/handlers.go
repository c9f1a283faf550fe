package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"companystatus/frame"
	"companystatus/ml"
	"companystatus/monitoring"
	"companystatus/pipeline"
)

const defaultPreviewRows = 5

// Handlers 预测服务的HTTP处理器
type Handlers struct {
	pipeline *pipeline.Pipeline
	exports  *ExportStore
	metrics  *monitoring.MetricsCollector
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandlers 创建处理器
func NewHandlers(p *pipeline.Pipeline, exports *ExportStore, metrics *monitoring.MetricsCollector, origins []string, logger *zap.Logger) *Handlers {
	return &Handlers{
		pipeline: p,
		exports:  exports,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(origins, origin)
			},
		},
	}
}

// Register 注册路由
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("POST /api/preview", h.handlePreview)
	mux.HandleFunc("POST /api/predict/batch", h.handleBatch)
	mux.HandleFunc("GET /api/exports/{id}", h.handleExport)
	mux.HandleFunc("GET /api/ws/predict", h.handlePredictSocket)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
}

// requestError marks failures caused by a malformed request.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

type schemaField struct {
	Name        string               `json:"name"`
	Kind        pipeline.FeatureKind `json:"kind"`
	Description string               `json:"description,omitempty"`
	Default     string               `json:"default"`
}

type schemaResponse struct {
	FeatureCount int           `json:"feature_count"`
	Fields       []schemaField `json:"fields"`
	Categorical  []string      `json:"categorical"`
	Numeric      []string      `json:"numeric"`
	Strict       bool          `json:"strict"`
}

type predictRequest struct {
	Record json.RawMessage `json:"record"`
}

type predictResponse struct {
	Prediction string       `json:"prediction"`
	Reconciled *frame.Table `json:"reconciled"`
	Display    *frame.Table `json:"display"`
}

type previewResponse struct {
	Columns []string                `json:"columns"`
	Total   int                     `json:"total"`
	Rows    *frame.Table            `json:"rows"`
	Quality *pipeline.QualityReport `json:"quality"`
}

type batchResponse struct {
	Count       int          `json:"count"`
	Display     *frame.Table `json:"display"`
	ExportID    string       `json:"export_id"`
	DownloadURL string       `json:"download_url"`
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, describeSchema(h.pipeline.Schema()))
}

func describeSchema(schema *pipeline.Schema) schemaResponse {
	features := schema.Features()
	fields := make([]schemaField, 0, len(features))
	for _, f := range features {
		def, ok := schema.Default(f.Name)
		if !ok && f.Kind == pipeline.Numeric {
			def = "0"
		}
		fields = append(fields, schemaField{
			Name:        f.Name,
			Kind:        f.Kind,
			Description: f.Description,
			Default:     def,
		})
	}
	return schemaResponse{
		FeatureCount: len(fields),
		Fields:       fields,
		Categorical:  schema.Categorical(),
		Numeric:      schema.Numeric(),
		Strict:       schema.Strict(),
	}
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = badRequest(fmt.Errorf("decode request: %w", err))
		h.metrics.RecordFailure(monitoring.ChannelSingle, failureKind(err))
		h.respondFailure(w, r, err)
		return
	}

	resp, err := h.predictRecord(monitoring.ChannelSingle, req.Record)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// predictRecord runs a single manually entered record through the pipeline.
func (h *Handlers) predictRecord(channel monitoring.Channel, raw json.RawMessage) (*predictResponse, error) {
	start := time.Now()
	result, err := h.runRecord(raw)
	if err != nil {
		h.metrics.RecordFailure(channel, failureKind(err))
		return nil, err
	}
	h.metrics.RecordPrediction(channel, result.Predictions, time.Since(start))

	return &predictResponse{
		Prediction: result.Predictions[0],
		Reconciled: result.Reconciled,
		Display:    result.Display,
	}, nil
}

func (h *Handlers) runRecord(raw json.RawMessage) (*pipeline.Result, error) {
	if len(raw) == 0 {
		return nil, badRequest(errors.New("record is required"))
	}
	input, err := frame.FromRecord(raw)
	if err != nil {
		return nil, badRequest(err)
	}
	return h.pipeline.Run(input)
}

func (h *Handlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := defaultPreviewRows
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	input, err := readUpload(r)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, previewResponse{
		Columns: input.Columns(),
		Total:   input.Len(),
		Rows:    input.Head(limit),
		Quality: h.pipeline.Check(input),
	})
}

func (h *Handlers) handleBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	input, err := readUpload(r)
	if err != nil {
		h.metrics.RecordFailure(monitoring.ChannelBatch, failureKind(err))
		h.respondFailure(w, r, err)
		return
	}

	result, err := h.pipeline.Run(input)
	if err != nil {
		h.metrics.RecordFailure(monitoring.ChannelBatch, failureKind(err))
		h.respondFailure(w, r, err)
		return
	}
	h.metrics.RecordPrediction(monitoring.ChannelBatch, result.Predictions, time.Since(start))

	export := h.exports.Put(result.CSV, len(result.Predictions))
	h.logger.Info("batch predicted",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Int("rows", export.Rows),
		zap.String("export_id", export.ID),
	)

	if acceptsCSV(r) {
		writeCSV(w, export)
		return
	}

	respondJSON(w, http.StatusOK, batchResponse{
		Count:       export.Rows,
		Display:     result.Display,
		ExportID:    export.ID,
		DownloadURL: "/api/exports/" + export.ID,
	})
}

func (h *Handlers) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	export, ok := h.exports.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "export not found")
		return
	}
	writeCSV(w, export)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(h.metrics.ExportPrometheus()))
		return
	}
	respondJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// readUpload 读取上传的CSV，支持multipart字段file或原始请求体
func readUpload(r *http.Request) (*frame.Table, error) {
	var src io.Reader = r.Body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, badRequest(fmt.Errorf("read upload: %w", err))
		}
		defer file.Close()
		src = file
	}

	input, err := frame.ReadCSV(src)
	if err != nil {
		return nil, badRequest(err)
	}
	return input, nil
}

func acceptsCSV(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mediaType, _, err := mime.ParseMediaType(part); err == nil && mediaType == "text/csv" {
			return true
		}
	}
	return false
}

func writeCSV(w http.ResponseWriter, export Export) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.CSV)
}

// statusFor 将错误映射为HTTP状态码
func statusFor(err error) int {
	var (
		reqErr   *requestError
		tooLarge *http.MaxBytesError
		mismatch *pipeline.SchemaMismatchError
		inferErr *ml.InferenceError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.As(err, &mismatch), errors.As(err, &inferErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// failureKind 错误分类，用于指标统计
func failureKind(err error) string {
	var (
		mismatch *pipeline.SchemaMismatchError
		inferErr *ml.InferenceError
	)
	switch {
	case errors.As(err, &mismatch):
		return "schema_mismatch"
	case errors.As(err, &inferErr):
		return "inference"
	}
	switch statusFor(err) {
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

func (h *Handlers) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}
	respondError(w, status, err.Error())
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
