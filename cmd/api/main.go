package main

import (
	"errors"
	"log"
	"net/http"

	"autoinvoice/internal/server"
)

func main() {
	srv := server.NewServer()

	log.Printf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}
