package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pandodao/token-bridge/core"
	"golang.org/x/sync/singleflight"
)

func New(
	identityz core.IdentityService,
	bindingz core.BindingService,
	conversionz core.ConversionService,
	tokenz core.TokenService,
	logger *slog.Logger,
) *Server {
	return &Server{
		identityz:   identityz,
		bindingz:    bindingz,
		conversionz: conversionz,
		tokenz:      tokenz,
		logger:      logger.With("server", "api"),
		sf:          &singleflight.Group{},
	}
}

type Server struct {
	identityz   core.IdentityService
	bindingz    core.BindingService
	conversionz core.ConversionService
	tokenz      core.TokenService
	logger      *slog.Logger
	sf          *singleflight.Group
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Delete("/session", s.logout)
		r.Put("/session/wallet", s.connect)
		r.Get("/me", s.me)
		r.Post("/bind", s.bind)

		r.Route("/conversions", func(r chi.Router) {
			r.Post("/", s.convert)
			r.Get("/{key}", s.findConversion)
		})
	})

	return r
}
