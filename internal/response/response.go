package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the single error shape of the API. Code carries the
// machine-readable reason of authorization failures and is empty otherwise.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var messages = map[int]string{
	http.StatusBadRequest:          "bad request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "resource not found",
	http.StatusMethodNotAllowed:    "method not allowed",
	http.StatusUnprocessableEntity: "unprocessable",
	http.StatusTooManyRequests:     "too many requests",
	http.StatusInternalServerError: "internal server error",
	http.StatusServiceUnavailable:  "service unavailable",
}

// Message returns the fixed message for a status.
func Message(code int) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return http.StatusText(code)
}

func JSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":500,"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

// Error writes the fixed message for code.
func Error(w http.ResponseWriter, code int) {
	JSON(w, code, ErrorBody{Error: code, Message: Message(code)})
}

func ErrorWithReason(w http.ResponseWriter, code int, reason, message string) {
	JSON(w, code, ErrorBody{Error: code, Message: message, Code: reason})
}
