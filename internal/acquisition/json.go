package acquisition

import (
	"encoding/json"
	"net/http"

	"github.com/cc-sentinel/sentinel/internal/slog"
)

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		slog.Warnf("acquisition: encoding json response: %v", err)
	}
}
