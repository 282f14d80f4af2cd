package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/antonkovalev/storysync/internal/common"
	"github.com/coder/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponseDTO{Error: msg})
}

// handleSync is POST /v1/sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFrom(r.Context())

	var req syncRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.sync.Sync(r.Context(), ownerID, toServiceRequest(&req))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation),
			errors.Is(err, common.ErrTooManyChanges),
			errors.Is(err, common.ErrUnknownEntityType),
			errors.Is(err, common.ErrUnknownOperation):
			s.logger.Warn(r.Context(), "sync rejected", "owner_id", ownerID, "error", err.Error())
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrStoreUnavailable):
			s.logger.Error(r.Context(), "store unavailable", "owner_id", ownerID, "error", err.Error())
			writeError(w, http.StatusServiceUnavailable, "store unavailable, retry")
		default:
			s.logger.Error(r.Context(), "sync failed", "owner_id", ownerID, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponseDTO(result))
}

// handleWatch is GET /v1/sync/watch: a websocket feed of change summaries
// for the owner, excluding the subscribing device's own writes.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFrom(r.Context())
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing device_id")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	sub := s.hub.Subscribe(ownerID, deviceID)
	if sub == nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.hub.Unsubscribe(sub)

	s.logger.Info(r.Context(), "watch connected", "owner_id", ownerID, "device_id", deviceID)

	// Read loop only detects disconnects; clients send nothing meaningful.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case summary, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			data, err := json.Marshal(summary)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}

// handleDevices is GET /v1/devices: the owner's devices seen within the
// staleness window.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFrom(r.Context())

	devices, err := s.sync.ActiveDevices(r.Context(), ownerID)
	if err != nil {
		s.logger.Error(r.Context(), "device listing failed", "owner_id", ownerID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toDevicesDTO(devices))
}

// handleMediaUpload is POST /v1/media/uploads.
func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerIDFrom(r.Context())

	key, url, err := s.media.PresignedPutURL(r.Context(), ownerID)
	if err != nil {
		s.logger.Error(r.Context(), "presign put failed", "owner_id", ownerID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, uploadURLResponseDTO{StorageKey: key, UploadURL: url})
}

// handleMediaDownload is GET /v1/media/{key...}.
func (s *Server) handleMediaDownload(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing storage key")
		return
	}

	url, err := s.media.PresignedGetURL(r.Context(), key)
	if err != nil {
		s.logger.Error(r.Context(), "presign get failed", "key", key, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, downloadURLResponseDTO{DownloadURL: url})
}

// handleHealth is GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
