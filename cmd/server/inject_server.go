package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/wire"
	"github.com/pandodao/token-bridge/handler/api"
	"github.com/pandodao/token-bridge/handler/hc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/viper"
	"github.com/tsenart/nap"
)

var serverSet = wire.NewSet(
	api.New,
	provideServer,
)

func provideServer(v *viper.Viper, conn *nap.DB, apiHandler *api.Server) *http.Server {
	v.SetDefault("api.prefix", "/api")

	m := chi.NewMux()
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Recoverer)
	m.Use(cors.AllowAll().Handler)

	m.Mount(v.GetString("api.prefix"), apiHandler.Handler())
	m.Mount("/hc", hc.Handler(version, conn.Master()))
	m.Mount("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", opt.port),
		Handler: m,
	}
}
