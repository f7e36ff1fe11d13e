package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Games          GameLister
	History        HistoryReader
	Socket         http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	logger := d.Logger.Named("http")
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(CORS(d.AllowedOrigins))

	// Public routes
	r.Get("/", Root)
	r.Get("/games", ListGames(d.Games, logger))
	r.Get("/history", RecentHistory(d.History, logger))
	r.Handle("/ws", d.Socket)
	return r
}
