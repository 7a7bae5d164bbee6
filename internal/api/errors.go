package api

import (
	"encoding/json"
	"net/http"
)

// problem is the body of every error response.
type problem struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// problemCodes maps the statuses the API answers with to stable codes.
var problemCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusNotFound:            "not_found",
	http.StatusMethodNotAllowed:    "method_not_allowed",
	http.StatusInternalServerError: "internal_error",
	http.StatusServiceUnavailable:  "unavailable",
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone
}

// fail answers with a problem body; the code is derived from status.
func fail(w http.ResponseWriter, status int, message string) {
	code, ok := problemCodes[status]
	if !ok {
		code = "error"
	}
	respond(w, status, problem{Status: status, Code: code, Message: message})
}
