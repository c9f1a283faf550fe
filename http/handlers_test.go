package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"companystatus/ml"
	"companystatus/monitoring"
	"companystatus/pipeline"
)

const batchCSV = "notes,category_code,funding_total_usd,country_code,milestones\n" +
	"first,web,50000,USA,0\n" +
	"second,biotech,50000,USA,0\n" +
	"third,biotech,50000,GBR,5\n"

const batchExport = "notes,category_code,funding_total_usd,country_code,milestones,Prediction\n" +
	"first,web,50000,USA,0,operating\n" +
	"second,biotech,50000,USA,0,closed\n" +
	"third,biotech,50000,GBR,5,operating\n"

func newTestServer(t *testing.T, opts pipeline.Options) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	model, err := ml.NewLoader("../testdata/model.json").Load()
	require.NoError(t, err)
	p, err := pipeline.New(model, opts, logger)
	require.NoError(t, err)
	exports, err := NewExportStore(4, "predictions.csv")
	require.NoError(t, err)

	return NewServer(DefaultServerConfig(), NewHandlers(p, exports, monitoring.NewMetricsCollector(), []string{"*"}, logger), logger)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), rr.Body.String())
	return payload
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestSchemaHandler(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	payload := decodeBody(t, rr)
	assert.Equal(t, float64(5), payload["feature_count"])
	assert.Equal(t, []interface{}{"category_code", "country_code"}, payload["categorical"])
	assert.Equal(t, []interface{}{"funding_total_usd", "milestones", "closed_year"}, payload["numeric"])

	fields := payload["fields"].([]interface{})
	category := fields[1].(map[string]interface{})
	assert.Equal(t, "category_code", category["name"])
	assert.Equal(t, "categorical", category["kind"])
	assert.Equal(t, "", category["default"])
	closed := fields[4].(map[string]interface{})
	assert.Equal(t, "closed_year", closed["name"])
	assert.Equal(t, "0", closed["default"])
}

func TestPredictHandler(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	body := `{"record":{"category_code":"biotech","funding_total_usd":50000,"country_code":"USA","milestones":0,"notes":"x"}}`
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	payload := decodeBody(t, rr)
	assert.Equal(t, "closed", payload["prediction"])

	reconciled := payload["reconciled"].(map[string]interface{})
	assert.Equal(t,
		[]interface{}{"funding_total_usd", "category_code", "country_code", "milestones", "closed_year"},
		reconciled["columns"])
	assert.Equal(t,
		[]interface{}{[]interface{}{"50000", "biotech", "USA", "0", "0"}},
		reconciled["rows"])

	display := payload["display"].(map[string]interface{})
	assert.Equal(t,
		[]interface{}{"category_code", "funding_total_usd", "country_code", "milestones", "notes", "Prediction"},
		display["columns"])
}

func TestPredictHandlerErrors(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"record":`, http.StatusBadRequest},
		{"missing record", `{}`, http.StatusBadRequest},
		{"nested value", `{"record":{"category_code":["web"]}}`, http.StatusBadRequest},
		{"missing categorical", `{"record":{"funding_total_usd":1,"country_code":"USA","milestones":0}}`, http.StatusUnprocessableEntity},
		{"non numeric value", `{"record":{"category_code":"web","funding_total_usd":"lots","country_code":"USA","milestones":0}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
		})
	}
}

func TestPredictHandlerStrict(t *testing.T) {
	s := newTestServer(t, pipeline.Options{Schema: pipeline.SchemaOptions{Strict: true}})

	body := `{"record":{"category_code":"web","funding_total_usd":1,"country_code":"USA"}}`
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "milestones")
}

func TestBatchHandlerJSONAndDownload(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/predict/batch", strings.NewReader(batchCSV)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Count       int    `json:"count"`
		ExportID    string `json:"export_id"`
		DownloadURL string `json:"download_url"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "/api/exports/"+resp.ExportID, resp.DownloadURL)

	download := serve(s, httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, "text/csv; charset=utf-8", download.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=predictions.csv`, download.Header().Get("Content-Disposition"))
	assert.Equal(t, batchExport, download.Body.String())
}

func TestBatchHandlerMultipartCSV(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "companies.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(batchCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json, text/csv;q=0.9")

	rr := serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, batchExport, rr.Body.String())
}

func TestBatchHandlerErrors(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty upload", "", http.StatusBadRequest},
		{"ragged row", "a,b\n1,2,3\n", http.StatusBadRequest},
		{"bad number", "category_code,funding_total_usd,country_code,milestones\nweb,abc,USA,0\n", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/predict/batch", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestBatchHandlerRejectsOversizedUpload(t *testing.T) {
	logger := zaptest.NewLogger(t)
	model, err := ml.NewLoader("../testdata/model.json").Load()
	require.NoError(t, err)
	p, err := pipeline.New(model, pipeline.Options{}, logger)
	require.NoError(t, err)
	exports, err := NewExportStore(1, "predictions.csv")
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.MaxUploadBytes = 16
	s := NewServer(cfg, NewHandlers(p, exports, monitoring.NewMetricsCollector(), nil, logger), logger)

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/predict/batch", strings.NewReader(batchCSV)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestPreviewHandler(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/api/preview?limit=2", strings.NewReader(batchCSV)))
	require.Equal(t, http.StatusOK, rr.Code)

	payload := decodeBody(t, rr)
	assert.Equal(t, float64(3), payload["total"])
	assert.Equal(t, []interface{}{"notes", "category_code", "funding_total_usd", "country_code", "milestones"}, payload["columns"])
	rows := payload["rows"].(map[string]interface{})["rows"].([]interface{})
	assert.Len(t, rows, 2)

	quality := payload["quality"].(map[string]interface{})
	assert.Equal(t, float64(0), quality["blocking"])
	assert.Equal(t, map[string]interface{}{"ignored_column": float64(1)}, quality["counts"])
}

func TestMetricsHandler(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	serve(s, httptest.NewRequest(http.MethodPost, "/api/predict/batch", strings.NewReader(batchCSV)))
	serve(s, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{}`)))

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeBody(t, rr)
	assert.Equal(t, map[string]interface{}{"operating": float64(2), "closed": float64(1)}, payload["labels"])
	assert.Equal(t, map[string]interface{}{"bad_request": float64(1)}, payload["failures"])

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/api/metrics?format=prometheus", nil))
	assert.Contains(t, rr.Body.String(), `companystatus_rows_total{channel="batch"} 3`)
}

func TestExportHandlerNotFound(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/exports/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExportStoreEvicts(t *testing.T) {
	store, err := NewExportStore(2, "out.csv")
	require.NoError(t, err)

	first := store.Put([]byte("a\n"), 1)
	store.Put([]byte("b\n"), 1)
	third := store.Put([]byte("c\n"), 1)

	_, ok := store.Get(first.ID)
	assert.False(t, ok)
	got, ok := store.Get(third.ID)
	require.True(t, ok)
	assert.Equal(t, "out.csv", got.FileName)
	assert.Equal(t, 2, store.Len())

	_, err = NewExportStore(0, "out.csv")
	assert.Error(t, err)
}

func TestPredictSocket(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/predict"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"record":{"category_code":"web","funding_total_usd":50000,"country_code":"USA","milestones":0}}`)))
	var reply socketResponse
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "operating", reply.Prediction)
	assert.Empty(t, reply.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"record":{"category_code":"web","funding_total_usd":50000,"country_code":"USA","milestones":0,"closed_year":2012}}`)))
	reply = socketResponse{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "closed", reply.Prediction)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	reply = socketResponse{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Empty(t, reply.Prediction)
	assert.Contains(t, reply.Error, "decode request")
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Chain(RecoveryMiddleware(zaptest.NewLogger(t)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://other.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
