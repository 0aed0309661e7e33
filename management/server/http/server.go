package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Server runs the API handler on a listener
type Server struct {
	server   *http.Server
	api      *APIHandler
	certFile string
	certKey  string
	listener net.Listener
}

// NewServer creates a new HTTP server. TLS is enabled when certFile and certKey are set.
func NewServer(address string, api *APIHandler, certFile, certKey string) *Server {
	server := &http.Server{
		Addr:              address,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
		// artifact downloads may stream for a long time
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{server: server, api: api, certFile: certFile, certKey: certKey}
}

// Start listens on the configured address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.listener = listener

	go func() {
		var err error
		if s.certFile != "" && s.certKey != "" {
			log.WithContext(ctx).Infof("https server listening on %s", listener.Addr())
			err = s.server.ServeTLS(listener, s.certFile, s.certKey)
		} else {
			log.WithContext(ctx).Infof("http server listening on %s", listener.Addr())
			err = s.server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithContext(ctx).Errorf("failed to serve http server: %v", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the http server
func (s *Server) Stop(ctx context.Context) error {
	defer s.api.Close()
	return s.server.Shutdown(ctx)
}
