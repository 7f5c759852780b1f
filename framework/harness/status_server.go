package harness

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devicelab/test-harness/framework"
	"github.com/devicelab/test-harness/framework/results"
)

// StatusServer exposes a live progress snapshot of the running invocation
// over HTTP, at GET /status.
type StatusServer struct {
	listener net.Listener
	server   *http.Server
}

// StartStatusServer begins listening on the given port immediately; requests
// are served on a background goroutine until Close.
func StartStatusServer(port int, reporter *results.Reporter, logger framework.Logger) (*StatusServer, error) {
	router := mux.NewRouter()
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		data, err := json.Marshal(reporter.Snapshot())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}).Methods("GET")

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	server := &http.Server{Handler: router}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Printf("status server: %s", err)
		}
	}()
	logger.Printf("status available at http://localhost:%d/status", port)
	return &StatusServer{listener: listener, server: server}, nil
}

// Addr returns the address the server is listening on.
func (s *StatusServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *StatusServer) Close() {
	_ = s.server.Close()
}
