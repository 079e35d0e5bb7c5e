package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"task-tracker-service/services"
)

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), rawQuery(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if result.Counted {
		respondJSON(w, http.StatusOK, "OK", result.Count)
		return
	}
	respondJSON(w, http.StatusOK, "OK", result.Tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSON(w, http.StatusBadRequest, "Bad request", map[string]string{"error": err.Error()})
		return
	}

	task, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Created", task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("select"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "OK", task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input services.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSON(w, http.StatusBadRequest, "Bad request", map[string]string{"error": err.Error()})
		return
	}

	task, err := h.service.Update(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, "OK", task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
