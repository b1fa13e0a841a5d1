package api

import (
	"Solvextra/internal/config"
	"Solvextra/internal/http-server/handlers/agent"
	"Solvextra/internal/http-server/handlers/channel"
	"Solvextra/internal/http-server/handlers/conversation"
	"Solvextra/internal/http-server/handlers/errors"
	"Solvextra/internal/http-server/handlers/rating"
	"Solvextra/internal/http-server/handlers/ticket"
	"Solvextra/internal/http-server/middleware/authenticate"
	"Solvextra/internal/http-server/middleware/timeout"
	"Solvextra/internal/lib/sl"
	"Solvextra/internal/ws"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net"
	"net/http"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	conversation.Core
	agent.Core
	ticket.Core
	rating.Core
	channel.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	// Console feed. Token is checked on upgrade, outside the bearer
	// middleware.
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, handler, log, w, r)
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(timeout.Timeout(5))
		v1.Use(authenticate.New(log, handler))

		v1.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversation.List(log, handler))
			r.Get("/{id}", conversation.Get(log, handler))
			r.Get("/{id}/messages", conversation.History(log, handler))
			r.Post("/{id}/escalate", conversation.Escalate(log, handler))
			r.Post("/{id}/accept", conversation.Accept(log, handler))
			r.Post("/{id}/assign", conversation.Assign(log, handler))
			r.Post("/{id}/message", conversation.SendMessage(log, handler))
			r.Post("/{id}/resolve", conversation.Resolve(log, handler))
			r.Post("/{id}/convert", conversation.Convert(log, handler))
		})
		v1.Route("/agents", func(r chi.Router) {
			r.Get("/", agent.List(log, handler))
			r.Post("/", agent.Create(log, handler))
			r.Post("/{id}/availability", agent.SetAvailability(log, handler))
		})
		v1.Route("/tickets", func(r chi.Router) {
			r.Get("/", ticket.List(log, handler))
			r.Post("/{id}/resolve", ticket.Resolve(log, handler))
		})
		v1.Route("/ratings", func(r chi.Router) {
			r.Get("/", rating.List(log, handler))
		})
		v1.Route("/channel", func(r chi.Router) {
			r.Post("/{channel}/message", channel.Inbound(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
