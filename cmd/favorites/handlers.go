package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sternrassler/ordering-favorites/pkg/favorites"
	"github.com/Sternrassler/ordering-favorites/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// favoriteAdder marks an entity as a favorite on the server.
type favoriteAdder interface {
	AddFavorite(ctx context.Context, favoriteURL string, objectID int64) error
}

// favoritesHandler exposes one controller over HTTP.
type favoritesHandler struct {
	ctrl        *favorites.Controller
	adder       favoriteAdder
	favoriteURL string
	logger      zerolog.Logger
}

func newFavoritesHandler(ctrl *favorites.Controller, adder favoriteAdder, favoriteURL string) *favoritesHandler {
	return &favoritesHandler{
		ctrl:        ctrl,
		adder:       adder,
		favoriteURL: favoriteURL,
		logger:      log.With().Str("component", "http").Logger(),
	}
}

// newRouter wires the health, metrics and favorites routes.
func newRouter(h *favoritesHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	h.Register(router)
	return router
}

// Register attaches the favorites routes to router.
func (h *favoritesHandler) Register(router *mux.Router) {
	router.HandleFunc("/favorites", h.list).Methods(http.MethodGet)
	router.HandleFunc("/favorites/refresh", h.refresh).Methods(http.MethodPost)
	router.HandleFunc("/favorites/{id}", h.add).Methods(http.MethodPost)
	router.HandleFunc("/favorites/{id}", h.remove).Methods(http.MethodDelete)
	router.HandleFunc("/reorder", h.reorderState).Methods(http.MethodGet)
	router.HandleFunc("/reorder", h.reorderGroup).Methods(http.MethodPost)
	router.HandleFunc("/reorder/{id}", h.reorder).Methods(http.MethodPost)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// list returns the snapshot. ?page=N loads page N first, ?all=true loads
// every remaining page.
func (h *favoritesHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("all") == "true":
		h.ctrl.LoadAll(r.Context())
	case q.Get("page") != "":
		page, err := strconv.Atoi(q.Get("page"))
		if err != nil || page < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		pageSize := 0
		if raw := q.Get("page_size"); raw != "" {
			pageSize, err = strconv.Atoi(raw)
			if err != nil || pageSize < 1 {
				http.Error(w, "invalid page_size", http.StatusBadRequest)
				return
			}
		}
		h.ctrl.FetchPage(r.Context(), page, pageSize)
	}

	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *favoritesHandler) refresh(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Refresh(r.Context())
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *favoritesHandler) add(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if err := h.adder.AddFavorite(r.Context(), h.favoriteURL, id); err != nil {
		h.logger.Warn().Err(err).Int64("id", id).Msg("Failed to add favorite")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.RemoveFromAccumulated(id, favorites.Changes{Favorite: true}))
}

func (h *favoritesHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	list, err := h.ctrl.Unfavorite(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *favoritesHandler) reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Reorder(r.Context(), id))
}

type reorderGroupRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

func (h *favoritesHandler) reorderGroup(w http.ResponseWriter, r *http.Request) {
	var req reorderGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.OrderIDs) == 0 {
		http.Error(w, "order_ids is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.ReorderGroup(r.Context(), req.OrderIDs))
}

func (h *favoritesHandler) reorderState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.ReorderState())
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
