package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"modelbroker/internal/config"
	"modelbroker/internal/httpapi"
)

func main() {
	// Local .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mux, deps, err := httpapi.NewRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // provider calls can run long
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Model broker listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Drain workers and flush the audit buffer before exiting
	if err := deps.Close(); err != nil {
		log.Printf("Failed to close dependencies: %v", err)
	}

	log.Println("Server exited")
}
