package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Pinger is a backend whose reachability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires the JSON API, the quiz websocket, health and metrics endpoints.
func NewRouter(api *APIHandler, ws *WSHandler, backends ...Pinger) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", healthHandler(backends)).Methods(http.MethodGet)
	r.HandleFunc("/ws/quiz", ws.ServeWS)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/users/{userId}/points", api.GetPoints).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userId}/points/earn", api.EarnPoints).Methods(http.MethodPost)
	v1.HandleFunc("/users/{userId}/points/history", api.GetHistory).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userId}/redemptions", api.Redeem).Methods(http.MethodPost)
	v1.HandleFunc("/users/{userId}/vouchers", api.UserVouchers).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userId}/vouchers/{voucherId}/use", api.UseVoucher).Methods(http.MethodPost)
	v1.HandleFunc("/vouchers", api.ListVouchers).Methods(http.MethodGet)
	if api.lister != nil {
		v1.HandleFunc("/quizzes", api.ListQuizzes).Methods(http.MethodGet)
	}
	v1.HandleFunc("/quizzes/{quizId}/reload", api.ReloadQuiz).Methods(http.MethodPost)
	v1.HandleFunc("/quizzes/{quizId}/attempts", api.GetAttempts).Methods(http.MethodGet)
	v1.HandleFunc("/quizzes/{quizId}/attempts/purchase", api.PurchaseAttempts).Methods(http.MethodPost)
	return r
}

func healthHandler(backends []Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, b := range backends {
			if err := b.Ping(ctx); err != nil {
				log.WithError(err).Warn("health check failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
