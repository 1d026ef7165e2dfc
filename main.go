package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slidesmith/config"
)

func main() {
	cfg := config.Load()

	for _, dir := range []string{cfg.PresentationsDir(), cfg.GeneratedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("[FATAL] failed to create directory %s: %v", dir, err)
		}
	}

	backend, err := newStoreBackend(cfg.StoreBackend, cfg.StorageRoot, cfg.PresentationsDir())
	if err != nil {
		log.Fatalf("[FATAL] failed to initialize store: %v", err)
	}
	store := NewCachedStore(backend)

	s3 := NewS3Service(cfg)
	server := NewServer(cfg, store, s3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.limiter.StartCleanup(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Routes(),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Presentation server starting on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[FATAL] server failed: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] shutdown error: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("[WARN] store close error: %v", err)
	}
	log.Println("Server stopped")
}
