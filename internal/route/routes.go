package route

import (
	"net/http"

	"crowdcounter/internal/config"
	"crowdcounter/internal/handler"
	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/middleware"
	"crowdcounter/internal/repository"
	"crowdcounter/internal/service/websocket"
)

// Services are the components the HTTP surface reads from.
type Services struct {
	Hub         *websocket.HubService
	History     handler.CycleHistory
	Predictions repository.PredictionRepository
	Cameras     handler.CameraLister
	Metrics     *metrics.Metrics
}

// healthHandler reports that the process is serving.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// SetupRoutes registers API, websocket, metrics and log endpoints and wraps
// the mux with the token middleware.
func SetupRoutes(svc Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", svc.Metrics.Handler())

	// API endpoints
	mux.HandleFunc("/api/ws", handler.ViewWebsocketHandler(svc.Hub, logger))
	mux.HandleFunc("/api/cameras", handler.CamerasHandler(svc.Cameras, logger))
	mux.HandleFunc("/api/predictions", handler.GetPredictionsFromDBHandler(svc.Predictions, logger))
	mux.HandleFunc("/api/predictions/recent", handler.RecentPredictionsHandler(svc.History, logger))
	mux.HandleFunc("/api/predictions/latest", handler.LatestPredictionHandler(svc.History, logger))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowInfoLogsHandler(cfg))
	mux.HandleFunc("/logs/warning", handler.ShowWarningLogsHandler(cfg))
	mux.HandleFunc("/logs/error", handler.ShowErrorLogsHandler(cfg))

	mux.HandleFunc("/logs/info/clear", handler.ClearInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning/clear", handler.ClearWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error/clear", handler.ClearErrorLogsHandler(logger))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(cfg.APIToken, mux)
}
