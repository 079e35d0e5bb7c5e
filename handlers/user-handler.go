package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"task-tracker-service/services"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), rawQuery(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if result.Counted {
		respondJSON(w, http.StatusOK, "OK", result.Count)
		return
	}
	respondJSON(w, http.StatusOK, "OK", result.Users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSON(w, http.StatusBadRequest, "Bad request", map[string]string{"error": err.Error()})
		return
	}

	user, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Created", user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("select"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "OK", user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input services.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSON(w, http.StatusBadRequest, "Bad request", map[string]string{"error": err.Error()})
		return
	}

	user, err := h.service.Update(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "OK", user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
