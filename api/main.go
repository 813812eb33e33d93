// @title MediaDrop Portal
// @version 0.1
// @description Client file delivery portal with resumable upload tracking.

// @host localhost:8080
// @BasePath /api
// @query.collection.format multi
// @schemes http

package main

import (
	"log"

	"mediadrop/portal/internal/app"
	"mediadrop/portal/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	app.Run(cfg)
}
