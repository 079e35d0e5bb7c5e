// Package handlers is the HTTP plumbing: it decodes requests, calls the
// lifecycle services and maps their typed failures onto status codes and
// the {message, data} response envelope.
package handlers

import (
	"encoding/json"
	"net/http"

	"task-tracker-service/apperrors"
	"task-tracker-service/query"
)

type envelope struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Message: message, Data: data})
}

func respondError(w http.ResponseWriter, err error) {
	data := map[string]string{"error": err.Error()}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeNotFound:
		respondJSON(w, http.StatusNotFound, "Not found", data)
	case apperrors.CodeBadRequest, apperrors.CodeValidationError, apperrors.CodeDuplicateEmail:
		respondJSON(w, http.StatusBadRequest, "Bad request", data)
	default:
		respondJSON(w, http.StatusInternalServerError, "Server error", data)
	}
}

func rawQuery(r *http.Request) query.Raw {
	q := r.URL.Query()
	return query.Raw{
		Where:  q.Get("where"),
		Sort:   q.Get("sort"),
		Select: q.Get("select"),
		Skip:   q.Get("skip"),
		Limit:  q.Get("limit"),
		Count:  q.Get("count"),
	}
}
