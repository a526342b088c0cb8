package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mikeboe/research-crew/pkg/chat"
	"github.com/mikeboe/research-crew/pkg/config"
	"github.com/mikeboe/research-crew/pkg/research"
	"github.com/mikeboe/research-crew/pkg/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg := config.Load()

	engine, pipeline, err := research.New(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to init research crew", "error", err)
		os.Exit(1)
	}

	// The assistant needs a Gemini key; the rest of the API works without it.
	var chatSvc *chat.Service
	if cfg.GoogleApiKey != "" {
		chatSvc, err = chat.NewService(context.Background(), cfg, pipeline)
		if err != nil {
			slog.Error("Failed to init chat service", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("GOOGLE_API_KEY not set, /api/ask is disabled")
	}

	svc := server.NewService(engine, pipeline)
	handler := server.NewHandler(svc, chatSvc)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
