// Package main is the entry point for ytaudio-proxy.
package main

import (
	"log"
	"os"

	"ytaudio-proxy/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	defer application.Shutdown()

	if err := application.Run(); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
