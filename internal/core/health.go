package core

import "net/http"

// healthResponse is the body returned by the health check endpoint.
type healthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

// HandleHealth responds with a liveness indicator. It intentionally performs
// no dependency checks so load balancers never recycle the process because a
// downstream (Stripe, Postgres) is degraded.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:      "ok",
		Environment: s.Config.Environment,
	})
}
