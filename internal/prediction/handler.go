package prediction

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// HandlerFunc returns the /api/predict endpoint. It forwards the caller's
// feature vector to the model service; any authenticated user may score.
func HandlerFunc(client *Client, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req Request
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
			writeError(w, http.StatusBadRequest, "invalid_request", "coordinates out of range")
			return
		}
		if req.Hour < 0 || req.Hour > 23 {
			writeError(w, http.StatusBadRequest, "invalid_request", "hour must be 0-23")
			return
		}
		if req.Month < 1 || req.Month > 12 {
			writeError(w, http.StatusBadRequest, "invalid_request", "month must be 1-12")
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			writeError(w, http.StatusBadRequest, "invalid_request", "weekday must be 0-6")
			return
		}
		if req.CrimeType == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "crime_type is required")
			return
		}

		ctx := r.Context()
		resp, err := client.Predict(ctx, req)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "unavailable", "prediction service unavailable")
				return
			}
			logger.Error("prediction failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
