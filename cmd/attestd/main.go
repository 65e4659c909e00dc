package main

import (
	"log"

	"github.com/RoloBits/attestation-photo-mobile/internal/config"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/db"
	httpinfra "github.com/RoloBits/attestation-photo-mobile/internal/infra/http"
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
