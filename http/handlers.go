package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"winequality/db"
	"winequality/ml"
	"winequality/monitoring"
)

// Handlers serves the form and the JSON API. History and Feed are optional.
type Handlers struct {
	Schema    *ml.Schema
	Predictor *ml.Predictor
	Model     ml.ModelInfo
	History   *db.History
	Metrics   *monitoring.MetricsCollector
	Feed      *monitoring.Feed
	Logger    *zap.Logger
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /{$}", h.handleSubmit)

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/schema", h.handleSchema)
	mux.HandleFunc("GET /api/reference", handleReference)
	mux.HandleFunc("GET /api/wines", handleWines)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	if h.Feed != nil {
		mux.Handle("GET /api/ws/predictions", h.Feed)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fields": h.Schema.Fields(),
	})
}

func handleReference(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ml.QualityReference())
}

func handleWines(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ml.SampleWines())
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Model)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		respondError(w, http.StatusServiceUnavailable, "prediction history is disabled", nil)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500", nil)
			return
		}
		limit = n
	}
	predictions, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		h.Logger.Error("query prediction history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"predictions": predictions})
}

type predictRequest struct {
	Features map[string]float64 `json:"features"`
}

type predictResponse struct {
	PredictionID string             `json:"prediction_id"`
	RequestID    string             `json:"request_id,omitempty"`
	Label        ml.QualityLabel    `json:"label"`
	ClassCode    int                `json:"class_code"`
	Features     map[string]float64 `json:"features"`
	Model        string             `json:"model_checksum"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.Metrics.RecordFailure("bad_request")
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}

	result, err := h.predict(r.Context(), "api", func(c *ml.FeatureCollector) error {
		return c.ApplyValues(req.Features)
	})
	if err != nil {
		h.writePredictError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, predictResponse{
		PredictionID: result.PredictionID,
		RequestID:    result.RequestID,
		Label:        result.Label,
		ClassCode:    int(result.Code),
		Features:     result.Vector.Map(),
		Model:        h.Model.Checksum,
	})
}

func (h *Handlers) writePredictError(w http.ResponseWriter, err error) {
	if fields := ml.FieldErrors(err); len(fields) > 0 {
		respondError(w, http.StatusUnprocessableEntity, "invalid features", fields)
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error(), nil)
}

type predictionResult struct {
	PredictionID string
	RequestID    string
	Label        ml.QualityLabel
	Code         ml.ClassCode
	Vector       ml.FeatureVector
}

// predict runs one submission through a fresh collector and the predictor,
// then records it. Nothing reaches the predictor unless every field is valid.
// The request id may come from the client, so each prediction also gets its own id.
func (h *Handlers) predict(ctx context.Context, source string, apply func(*ml.FeatureCollector) error) (*predictionResult, error) {
	start := time.Now()
	predictionID := uuid.NewString()
	requestID := GetRequestID(ctx)
	logger := h.Logger.With(
		zap.String("prediction_id", predictionID),
		zap.String("request_id", requestID),
		zap.String("source", source))

	collector := ml.NewFeatureCollector(h.Schema)
	if err := apply(collector); err != nil {
		h.Metrics.RecordFailure("invalid_input")
		logger.Info("rejected features", zap.Error(err))
		return nil, err
	}
	vector, err := collector.Collect()
	if err != nil {
		h.Metrics.RecordFailure("invalid_input")
		return nil, err
	}

	label, code, err := h.Predictor.Classify(vector)
	if err != nil {
		reason := "classifier"
		if errors.Is(err, ml.ErrUnmappedClassCode) {
			reason = "unmapped_class_code"
		}
		h.Metrics.RecordFailure(reason)
		logger.Error("classification failed", zap.Error(err))
		return nil, err
	}
	elapsed := time.Since(start)
	h.Metrics.RecordPrediction(string(label), elapsed)
	logger.Info("prediction served",
		zap.String("label", string(label)),
		zap.Int("class_code", int(code)),
		zap.Duration("elapsed", elapsed))

	result := &predictionResult{
		PredictionID: predictionID,
		RequestID:    requestID,
		Label:        label,
		Code:         code,
		Vector:       vector,
	}
	h.record(ctx, source, result, logger)
	return result, nil
}

func (h *Handlers) record(ctx context.Context, source string, result *predictionResult, logger *zap.Logger) {
	now := time.Now()
	features := result.Vector.Map()
	if h.History != nil {
		_, err := h.History.Save(ctx, db.Prediction{
			PredictionID:  result.PredictionID,
			RequestID:     result.RequestID,
			Source:        source,
			Features:      features,
			ClassCode:     int(result.Code),
			Label:         string(result.Label),
			ModelChecksum: h.Model.Checksum,
			CreatedAt:     now,
		})
		if err != nil {
			// history is best effort; the user still gets the label
			logger.Warn("save prediction", zap.Error(err))
		}
	}
	if h.Feed != nil {
		h.Feed.Publish(monitoring.PredictionEvent{
			PredictionID: result.PredictionID,
			RequestID:    result.RequestID,
			Source:       source,
			Label:        string(result.Label),
			ClassCode:    int(result.Code),
			Features:     features,
			Timestamp:    now,
		})
	}
}

type fieldErrorBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorBody struct {
	Error  string           `json:"error"`
	Fields []fieldErrorBody `json:"fields,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string, fields []*ml.FieldError) {
	body := errorBody{Error: message}
	for _, fe := range fields {
		body.Fields = append(body.Fields, fieldErrorBody{Field: fe.Field, Message: fe.Err.Error()})
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
