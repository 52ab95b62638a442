// Package httpx provides HTTP response utilities built around the API envelope.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the uniform body of every API response.
type Envelope struct {
	TimeStamp time.Time `json:"timeStamp"`
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Route     string    `json:"route"`
}

// now is swapped in tests.
var now = time.Now

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Respond writes a successful envelope carrying data.
func Respond(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	if data == nil {
		data = struct{}{}
	}
	JSON(w, status, Envelope{
		TimeStamp: now().UTC(),
		Success:   true,
		Data:      data,
		Message:   message,
		Status:    status,
		Route:     r.URL.Path,
	})
}

// Fail writes a failed envelope. Data is always an empty object.
func Fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, status, Envelope{
		TimeStamp: now().UTC(),
		Success:   false,
		Data:      struct{}{},
		Message:   message,
		Status:    status,
		Route:     r.URL.Path,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
