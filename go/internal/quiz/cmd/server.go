package main

import (
	"net/http"

	"github.com/mcdev12/trivia/go/internal/quiz/config"
	"github.com/mcdev12/trivia/go/internal/quiz/gateway"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg config.Config, svc *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	svc.RegisterRoutes(mux)

	return &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}
