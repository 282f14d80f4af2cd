// Package httpapi exposes the sync engine over HTTP JSON plus a websocket
// change feed. It owns no business logic: requests are decoded, the owner
// identity is verified, and the call is handed to the sync/media services.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/antonkovalev/storysync/internal/logging"
	"github.com/antonkovalev/storysync/internal/server/models"
	"github.com/antonkovalev/storysync/internal/server/notify"
	"github.com/antonkovalev/storysync/internal/server/services"
)

// SyncAPI is the slice of the sync service the handlers need.
type SyncAPI interface {
	Sync(ctx context.Context, ownerID string, req *services.SyncRequest) (*services.SyncResult, error)
	ActiveDevices(ctx context.Context, ownerID string) ([]*models.Device, error)
}

// MediaAPI issues presigned blob URLs.
type MediaAPI interface {
	PresignedPutURL(ctx context.Context, ownerID string) (string, string, error)
	PresignedGetURL(ctx context.Context, key string) (string, error)
}

// WatchHub registers websocket subscribers for change pushes.
type WatchHub interface {
	Subscribe(ownerID, deviceID string) *notify.Subscription
	Unsubscribe(sub *notify.Subscription)
}

type Server struct {
	address   string
	sync      SyncAPI
	media     MediaAPI
	hub       WatchHub
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, sync SyncAPI, media MediaAPI, hub WatchHub, secretKey string) (*Server, error) {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		sync:      sync,
		media:     media,
		hub:       hub,
		jwtSecret: []byte(secretKey),
	}, nil
}

// routes builds the request multiplexer. Split out so handler tests can
// exercise the full routing/auth chain without a listener.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sync", s.withAuth(s.handleSync))
	mux.HandleFunc("GET /v1/sync/watch", s.withAuth(s.handleWatch))
	mux.HandleFunc("GET /v1/devices", s.withAuth(s.handleDevices))
	mux.HandleFunc("POST /v1/media/uploads", s.withAuth(s.handleMediaUpload))
	mux.HandleFunc("GET /v1/media/{key...}", s.withAuth(s.handleMediaDownload))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the watch endpoint holds connections open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
