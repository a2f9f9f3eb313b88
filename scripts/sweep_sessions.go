// Manual orphan-session sweep.
//
// The same sweep runs inside the main application every 30 seconds. This
// script exists for operational use: after an instance crash or a Redis
// failover, run it once to expire sessions whose hot-tier record lapsed
// without a clean close.
//
// Usage: go run scripts/sweep_sessions.go

package main

import (
	"context"
	"log"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/repository"
	"lingua_voice_backend/internal/service"
	"lingua_voice_backend/pkg/database"
	"lingua_voice_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}

	sessions := &service.SessionService{
		SessionRepo: repository.NewSessionRepository(db),
		Cache:       repository.NewSessionCache(rdb, cfg.Session.CacheTTL),
		Clock:       service.SystemClock{},
	}

	log.Println("sweeping orphaned sessions...")
	sessions.SweepOrphans(context.Background())
	log.Println("done")
}
