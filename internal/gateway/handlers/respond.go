package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a success body. Resource handlers wrap their payload
// under the resource name, e.g. {"devices": [...]}.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
