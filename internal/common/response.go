package common

import (
	"encoding/json"
	"net/http"
)

// Envelope is the success body of every API response.
type Envelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

// ErrorBody is the payload under "error" in failed responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the body of every failed API response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v as the response body. HTML escaping is off so currency
// strings such as "₦1,200 & up" reach clients untouched.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Data writes {"data": data}.
func Data(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Data: data})
}

// DataWithMeta writes {"data": data, "meta": meta}.
func DataWithMeta(w http.ResponseWriter, status int, data, meta any) {
	JSON(w, status, Envelope{Data: data, Meta: meta})
}

// JSONError writes {"error": {...}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, ErrorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}
