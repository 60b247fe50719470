package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/internal/config"
	"InboxGate/internal/http-server/handlers/connection"
	"InboxGate/internal/http-server/handlers/errors"
	"InboxGate/internal/http-server/handlers/key"
	"InboxGate/internal/http-server/handlers/message"
	"InboxGate/internal/http-server/handlers/refresh"
	"InboxGate/internal/http-server/handlers/webhook"
	"InboxGate/internal/http-server/middleware/ack"
	"InboxGate/internal/http-server/middleware/authenticate"
	"InboxGate/internal/http-server/middleware/timeout"
	"InboxGate/internal/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	webhook.Core
	message.Core
	connection.Core
	refresh.Core
	key.Core
}

// NewRouter builds the public webhook routes and the authenticated internal API.
// ws may be nil when live updates are disabled.
func NewRouter(log *slog.Logger, handler Handler, ws http.HandlerFunc) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/ping"))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	// Meta requires a response within seconds; the platform retries otherwise.
	router.Route("/webhooks/{provider}", func(r chi.Router) {
		r.Use(ack.Recoverer(log, webhook.Ack))
		r.Use(timeout.Timeout(10))
		r.Get("/", webhook.Verify(log, handler))
		r.Post("/", webhook.Receive(log, handler))
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(authenticate.New(log, handler))

		if ws != nil {
			v1.Get("/ws", ws)
		}

		v1.Group(func(r chi.Router) {
			r.Use(timeout.Timeout(30))
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.Post("/messages/send", message.Send(log, handler))
			r.Get("/conversations/{id}/messages", message.List(log, handler))
			r.Post("/connections", connection.Link(log, handler))
			r.Post("/refresh/run", refresh.Run(log, handler))
			r.Post("/keys", key.Generate(log, handler))
		})
	})

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler, ws http.HandlerFunc) *Server {
	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	return &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
		httpServer: &http.Server{
			Handler:  NewRouter(log, handler, ws),
			ErrorLog: httpLog,
		},
	}
}

// Run blocks until the server stops; http.ErrServerClosed is returned after Shutdown.
func (s *Server) Run() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))
	return s.httpServer.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
