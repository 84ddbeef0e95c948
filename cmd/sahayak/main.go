package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/agent"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/api"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/config"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/conversation"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/knowledge"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/llm"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/logger"
	"github.com/SEETHALA-DEVI-CHANDU/Agentic-AI/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	turnStore, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		logger.L.Error("failed to open turn store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer turnStore.Close()

	llmClient := llm.NewClient(cfg.LLM)
	tutor := agent.New(llmClient, *cfg, knowledge.NewRetriever())
	defer tutor.Close()

	manager := conversation.NewManager(turnStore, tutor, cfg.Conversation.ContextWindow)

	// Stale sessions are swept in the background at the inactivity
	// granularity; the API also exposes an explicit sweep.
	go func() {
		ticker := time.NewTicker(cfg.Conversation.InactivityLimit)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := manager.EvictStale(ctx, now, cfg.Conversation.InactivityLimit); removed > 0 {
					logger.L.Info("evicted stale sessions", "removed", removed)
				}
			}
		}
	}()

	server := api.NewServer(manager, cfg.Conversation.InactivityLimit)
	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: server.Handler(),
	}

	go func() {
		logger.L.Info("starting server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.L.Warn("shutdown did not complete cleanly", "error", err)
	}
}
