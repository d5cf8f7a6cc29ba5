// Package queues exposes read-only views of the allocation state over HTTP.
package queues

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/fuelq/core/model"
)

// Engine is the subset of the allocation engine read by the handlers.
type Engine interface {
	ListWaitingQueue(ctx context.Context, station string, fuel model.FuelType) ([]model.RequestRef, error)
	ListAnnouncedQueues(ctx context.Context, f model.QueueFilter) ([]model.AnnouncedQueue, error)
	GetQueue(ctx context.Context, id string) (model.AnnouncedQueue, error)
	GetRequest(ctx context.Context, id string) (model.Request, error)
	ListSubjectRequests(ctx context.Context, regNo string) ([]model.Request, error)
	ListQuotas(ctx context.Context, subject string) ([]model.Quota, error)
	ListStationStock(ctx context.Context, station string) ([]model.Stock, error)
	Notifications(ctx context.Context, recipient string) ([]model.Notification, error)
	UnreadNotifications(ctx context.Context, recipient string) ([]model.Notification, error)
}

// NewHandler returns a mux serving:
//
//	GET /api/stations/{station}/waiting?fuel=
//	GET /api/stations/{station}/stock
//	GET /api/queues?station=&fuel=&state=
//	GET /api/queues/{id}
//	GET /api/requests/{id}
//	GET /api/subjects/{regNo}/requests
//	GET /api/subjects/{regNo}/quotas
//	GET /api/subjects/{regNo}/notifications?unread=true
func NewHandler(eng Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stations/{station}/waiting", func(w http.ResponseWriter, r *http.Request) {
		fuel, err := model.ParseFuelType(r.URL.Query().Get("fuel"))
		if err != nil {
			writeError(w, err)
			return
		}
		refs, err := eng.ListWaitingQueue(r.Context(), r.PathValue("station"), fuel)
		respond(w, refs, err)
	})
	mux.HandleFunc("GET /api/stations/{station}/stock", func(w http.ResponseWriter, r *http.Request) {
		stock, err := eng.ListStationStock(r.Context(), r.PathValue("station"))
		respond(w, stock, err)
	})
	mux.HandleFunc("GET /api/queues", func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		f := model.QueueFilter{
			StationRegNo: v.Get("station"),
			State:        model.QueueState(v.Get("state")),
		}
		if s := v.Get("fuel"); s != "" {
			fuel, err := model.ParseFuelType(s)
			if err != nil {
				writeError(w, err)
				return
			}
			f.FuelType = fuel
		}
		qs, err := eng.ListAnnouncedQueues(r.Context(), f)
		respond(w, qs, err)
	})
	mux.HandleFunc("GET /api/queues/{id}", func(w http.ResponseWriter, r *http.Request) {
		q, err := eng.GetQueue(r.Context(), r.PathValue("id"))
		respond(w, q, err)
	})
	mux.HandleFunc("GET /api/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		req, err := eng.GetRequest(r.Context(), r.PathValue("id"))
		respond(w, req, err)
	})
	mux.HandleFunc("GET /api/subjects/{regNo}/requests", func(w http.ResponseWriter, r *http.Request) {
		reqs, err := eng.ListSubjectRequests(r.Context(), r.PathValue("regNo"))
		respond(w, reqs, err)
	})
	mux.HandleFunc("GET /api/subjects/{regNo}/quotas", func(w http.ResponseWriter, r *http.Request) {
		qs, err := eng.ListQuotas(r.Context(), r.PathValue("regNo"))
		respond(w, qs, err)
	})
	mux.HandleFunc("GET /api/subjects/{regNo}/notifications", func(w http.ResponseWriter, r *http.Request) {
		regNo := r.PathValue("regNo")
		var (
			ns  []model.Notification
			err error
		)
		if r.URL.Query().Get("unread") == "true" {
			ns, err = eng.UnreadNotifications(r.Context(), regNo)
		} else {
			ns, err = eng.Notifications(r.Context(), regNo)
		}
		respond(w, ns, err)
	})
	return mux
}

// StatusCode maps an engine error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrQuotaExceeded),
		errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrRequestNotInWaitingQueue),
		errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error(), Kind: model.ErrorKind(err)})
}

func respond[T any](w http.ResponseWriter, v T, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
