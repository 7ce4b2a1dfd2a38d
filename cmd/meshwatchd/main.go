package main

import (
	"log"

	"meshwatch/internal/config"
	"meshwatch/internal/infra/db"
	httpinfra "meshwatch/internal/infra/http"
)

func main() {
	cfg := config.FromEnv()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	srv := httpinfra.NewServer(cfg, store)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
