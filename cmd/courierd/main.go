package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/fooddash/courierd/internal/coordinator"
	"github.com/fooddash/courierd/internal/httpapi"
	"github.com/fooddash/courierd/internal/orderapi"
	"github.com/fooddash/courierd/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	orderAPIURL := os.Getenv("ORDER_API_URL")
	if orderAPIURL == "" {
		orderAPIURL = "http://localhost:8000/api" // Fallback for local development
	}

	pollInterval := coordinator.DefaultPollInterval
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Error("Invalid POLL_INTERVAL, expected a positive Go duration like 30s", "value", raw)
			os.Exit(1)
		}
		pollInterval = d
	}

	store := session.NewStore()
	orders := orderapi.NewClient(orderAPIURL, store, logger)

	handler := &httpapi.Handler{
		Orders:       orders,
		Store:        store,
		Logger:       logger,
		PollInterval: pollInterval,
	}
	mux := httpapi.NewRouter(handler)

	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090" // Fallback for local development
	}
	serverAddr := "0.0.0.0:" + port

	slog.Info("Starting HTTP server", "addr", serverAddr, "order_api", orderAPIURL, "poll_interval", pollInterval)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
