package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"winequality/db"
	"winequality/ml"
	"winequality/monitoring"
)

type fakeModel struct {
	code ml.ClassCode
}

func (f *fakeModel) FeatureNames() []string {
	return ml.FeatureNames()
}

func (f *fakeModel) Predict(features []float64) (ml.ClassCode, error) {
	return f.code, nil
}

func newTestHandlers(t *testing.T, classifier ml.Classifier) *Handlers {
	t.Helper()
	history, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	feed, err := monitoring.NewFeed(10, []string{"*"}, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go feed.Run(ctx)

	return &Handlers{
		Schema:    ml.WineSchema(),
		Predictor: ml.NewPredictor(classifier),
		Model:     ml.ModelInfo{Type: "random_forest", Checksum: "0123456789abcdef", Trees: 3},
		History:   history,
		Metrics:   monitoring.NewMetricsCollector(),
		Feed:      feed,
		Logger:    zap.NewNop(),
	}
}

func newTestServer(t *testing.T, classifier ml.Classifier) (http.Handler, *Handlers) {
	t.Helper()
	h := newTestHandlers(t, classifier)
	return NewHandler(DefaultServerConfig(), h, zap.NewNop()), h
}

func forestModel(t *testing.T) ml.Classifier {
	t.Helper()
	model, err := ml.LoadModel(ml.ModelTypeRandomForest, "../ml/testdata/forest.json")
	require.NoError(t, err)
	return model
}

func TestHealthHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(handleHealth)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"status":"ok"}`
	if rr.Body.String() != expected+"\n" && rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandlePredictDefaults(t *testing.T) {
	handler, h := newTestServer(t, forestModel(t))

	w := postJSON(t, handler, "/api/predict", `{"features":{}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, ml.QualityLabels(), resp.Label)
	assert.Equal(t, ml.QualityLow, resp.Label)
	assert.Equal(t, 7.4, resp.Features["fixed_acidity"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.RequestID)
	assert.NotEmpty(t, resp.PredictionID)

	history, err := h.History.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "api", history[0].Source)
	assert.Equal(t, "Low", history[0].Label)

	require.Eventually(t, func() bool { return len(h.Feed.Recent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), h.Metrics.Snapshot().ByLabel["Low"])
}

func TestHandlePredictRepeatedRequestID(t *testing.T) {
	handler, h := newTestServer(t, forestModel(t))

	ids := make(map[string]bool)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"features":{}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", "retry-1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp predictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "retry-1", resp.RequestID)
		ids[resp.PredictionID] = true
	}
	assert.Len(t, ids, 2)

	history, err := h.History.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, p := range history {
		assert.Equal(t, "retry-1", p.RequestID)
		assert.True(t, ids[p.PredictionID])
	}
	require.Eventually(t, func() bool { return len(h.Feed.Recent()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), h.Metrics.Snapshot().Predictions)
}

func TestHandlePredictStubbedCodes(t *testing.T) {
	for code, want := range map[ml.ClassCode]ml.QualityLabel{0: ml.QualityLow, 1: ml.QualityMedium, 2: ml.QualityHigh} {
		handler, _ := newTestServer(t, &fakeModel{code: code})
		w := postJSON(t, handler, "/api/predict", `{"features":{"alcohol":11.2}}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp predictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Label)
		assert.Equal(t, int(code), resp.ClassCode)
	}
}

func TestHandlePredictUnmappedCode(t *testing.T) {
	handler, h := newTestServer(t, &fakeModel{code: 3})
	w := postJSON(t, handler, "/api/predict", `{"features":{}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "unmapped class code 3")
	assert.Equal(t, int64(1), h.Metrics.Snapshot().Failures["unmapped_class_code"])

	history, err := h.History.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandlePredictRejectsInvalidFeatures(t *testing.T) {
	handler, h := newTestServer(t, forestModel(t))

	w := postJSON(t, handler, "/api/predict",
		`{"features":{"ph":7.5,"free_sulfur_dioxide":11.5,"colour":1}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	fields := make([]string, 0, len(body.Fields))
	for _, f := range body.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"ph", "free_sulfur_dioxide", "colour"}, fields)
	assert.Zero(t, h.Metrics.Snapshot().Predictions)
}

func TestHandlePredictRejectsMalformedBody(t *testing.T) {
	handler, _ := newTestServer(t, forestModel(t))

	w := postJSON(t, handler, "/api/predict", `{"features":{"alcohol":"strong"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, handler, "/api/predict", `{"vector":[1,2,3]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexPageRendersDefaults(t *testing.T) {
	handler, _ := newTestServer(t, forestModel(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="fixed_acidity" value="7.4"`)
	assert.Contains(t, body, `name="total_sulfur_dioxide" value="34"`)
	assert.Contains(t, body, "Rosé Wine")
	assert.Contains(t, body, "7-10")
	assert.NotContains(t, body, "Predicted Quality")
}

func TestFormSubmit(t *testing.T) {
	handler, h := newTestServer(t, forestModel(t))

	form := url.Values{}
	for _, f := range ml.WineSchema().Fields() {
		form.Set(f.Name, formatValue(f.Default))
	}
	form.Set("alcohol", "12.5")
	form.Set("sulphates", "0.8")
	form.Set("volatile_acidity", "0.3")
	form.Set("total_sulfur_dioxide", "30")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<strong id="label">High</strong>`)
	assert.Contains(t, w.Body.String(), `name="alcohol" value="12.5"`)

	history, err := h.History.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "form", history[0].Source)
}

func TestFormSubmitShowsFieldErrors(t *testing.T) {
	handler, h := newTestServer(t, forestModel(t))

	form := url.Values{}
	form.Set("total_sulfur_dioxide", "34.5")
	form.Set("density", "abc")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Please correct the highlighted values.")
	assert.Contains(t, body, ml.ErrNotInteger.Error())
	assert.Contains(t, body, ml.ErrNotNumeric.Error())
	assert.Contains(t, body, `name="density" value="abc"`)
	assert.NotContains(t, body, "Predicted Quality")
	assert.Zero(t, h.Metrics.Snapshot().Predictions)
}

func TestStaticEndpoints(t *testing.T) {
	handler, _ := newTestServer(t, forestModel(t))

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/api/reference")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []ml.QualityReferenceRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Equal(t, ml.QualityReference(), rows)

	w = get("/api/schema")
	require.Equal(t, http.StatusOK, w.Code)
	var schema struct {
		Fields []ml.FieldSpec `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schema))
	assert.Equal(t, ml.WineSchema().Fields(), schema.Fields)

	w = get("/api/wines")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bordeaux")
	assert.NotContains(t, w.Body.String(), `"image"`)

	w = get("/api/model")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0123456789abcdef")

	assert.Equal(t, http.StatusOK, get("/api/metrics").Code)
	assert.Equal(t, http.StatusOK, get("/api/predictions?limit=5").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/predictions?limit=0").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/unknown").Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestIDMiddlewareKeepsIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
