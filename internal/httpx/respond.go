package httpx

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error writes the standard error body: a short message plus the underlying
// detail.
func Error(w http.ResponseWriter, status int, message, detail string) {
	JSON(w, status, map[string]string{"message": message, "error": detail})
}
