package main

import (
	"errors"
	"log"
	"net/http"

	"songguessr/internal/server"
)

func main() {
	srv := server.NewServer()

	log.Printf("[Main] listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}
