package rest

import (
	"encoding/json"
	"log"
	"net/http"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// APIResponse is the envelope every endpoint answers with. ErrorCode is zero
// on success and mirrors the HTTP status on errors so portal clients can
// branch without inspecting transport details.
type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func writeResponse(w http.ResponseWriter, httpStatus int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	writeResponse(w, http.StatusOK, APIResponse{Status: statusSuccess, Message: message, Data: data})
}

func SuccessAccepted(w http.ResponseWriter, message string, data interface{}) {
	writeResponse(w, http.StatusAccepted, APIResponse{Status: statusSuccess, Message: message, Data: data})
}

func Error(w http.ResponseWriter, message string, httpStatus int) {
	writeResponse(w, httpStatus, APIResponse{ErrorCode: httpStatus, Status: statusError, Message: message})
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, http.StatusInternalServerError)
}
