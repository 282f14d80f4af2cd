package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antonkovalev/storysync/internal/common"
	"github.com/antonkovalev/storysync/internal/logging"
	"github.com/antonkovalev/storysync/internal/server/auth"
	"github.com/antonkovalev/storysync/internal/server/models"
	"github.com/antonkovalev/storysync/internal/server/notify"
	"github.com/antonkovalev/storysync/internal/server/services"
)

const testSecret = "test-secret"

// -------- test fakes --------

type fakeSyncAPI struct {
	gotOwner string
	gotReq   *services.SyncRequest
	result   *services.SyncResult
	devices  []*models.Device
	err      error
}

func (f *fakeSyncAPI) Sync(ctx context.Context, ownerID string, req *services.SyncRequest) (*services.SyncResult, error) {
	f.gotOwner = ownerID
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSyncAPI) ActiveDevices(ctx context.Context, ownerID string) ([]*models.Device, error) {
	f.gotOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

type fakeMediaAPI struct {
	putKey, putURL string
	getURL         string
	gotKey         string
	err            error
}

func (f *fakeMediaAPI) PresignedPutURL(ctx context.Context, ownerID string) (string, string, error) {
	return f.putKey, f.putURL, f.err
}

func (f *fakeMediaAPI) PresignedGetURL(ctx context.Context, key string) (string, error) {
	f.gotKey = key
	return f.getURL, f.err
}

// -------- helpers --------

func newTestServer(t *testing.T, sync *fakeSyncAPI, media *fakeMediaAPI) *Server {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub := notify.NewHub(logger)
	t.Cleanup(hub.Close)

	s, err := NewServer(":0", logger, sync, media, hub, testSecret)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return s
}

func authHeader(t *testing.T, ownerID string) string {
	t.Helper()
	token, err := auth.GenerateToken(ownerID, []byte(testSecret), time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return "Bearer " + token
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

// -------- tests --------

func TestSyncRequiresAuth(t *testing.T) {
	s := newTestServer(t, &fakeSyncAPI{}, &fakeMediaAPI{})

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{}`))
	rec := doRequest(s, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer garbage")
	rec = doRequest(s, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestSyncHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeSyncAPI{
		result: &services.SyncResult{
			Cursor:   5,
			DeviceID: "devA",
			ServerChanges: []*models.JournalEntry{{
				EntityType:       models.EntityTypeHero,
				EntityID:         "11111111-1111-4111-8111-111111111111",
				Operation:        models.OpCreate,
				ResultingVersion: 1,
				Sequence:         5,
				ServerTimestamp:  now,
				Payload:          json.RawMessage(`{"name":"Robin"}`),
			}},
			Stats:           services.SyncStats{TotalProcessed: 1, Successful: 1},
			NextSyncAt:      now.Add(5 * time.Minute),
			RealTimeEnabled: true,
		},
	}
	s := newTestServer(t, api, &fakeMediaAPI{})

	body := `{
		"device": {"device_id": "devA", "device_type": "ios"},
		"last_sync_cursor": 4,
		"changes": [],
		"capabilities": {"supports_real_time": true}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(body))
	req.Header.Set("Authorization", authHeader(t, "owner1"))

	rec := doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if api.gotOwner != "owner1" {
		t.Errorf("owner id not passed through, got %q", api.gotOwner)
	}
	if api.gotReq.LastSyncCursor != 4 || api.gotReq.Device.DeviceID != "devA" {
		t.Errorf("request not mapped: %+v", api.gotReq)
	}
	if !api.gotReq.Device.Capabilities.SupportsRealTime {
		t.Error("capabilities not mapped onto the device")
	}

	var resp syncResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.SyncCursor != 5 || !resp.RealTimeEnabled {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.ServerChanges) != 1 || resp.ServerChanges[0].Version != 1 {
		t.Errorf("server changes not mapped: %+v", resp.ServerChanges)
	}
	if resp.SyncStatus.Successful != 1 {
		t.Errorf("stats not mapped: %+v", resp.SyncStatus)
	}
}

func TestSyncErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: empty device id", common.ErrorValidation), http.StatusBadRequest},
		{"too many changes", fmt.Errorf("%w: 501 > 500", common.ErrTooManyChanges), http.StatusBadRequest},
		{"unknown type", fmt.Errorf("%w: %q", common.ErrUnknownEntityType, "spaceship"), http.StatusBadRequest},
		{"store unavailable", fmt.Errorf("tx: %w", common.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakeSyncAPI{err: tc.err}, &fakeMediaAPI{})

			req := httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{"device":{"device_id":"d"}}`))
			req.Header.Set("Authorization", authHeader(t, "owner1"))

			rec := doRequest(s, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestSyncMalformedBody(t *testing.T) {
	s := newTestServer(t, &fakeSyncAPI{}, &fakeMediaAPI{})

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", strings.NewReader(`{not json`))
	req.Header.Set("Authorization", authHeader(t, "owner1"))

	rec := doRequest(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWatchRequiresDeviceID(t *testing.T) {
	s := newTestServer(t, &fakeSyncAPI{}, &fakeMediaAPI{})

	req := httptest.NewRequest(http.MethodGet, "/v1/sync/watch", nil)
	req.Header.Set("Authorization", authHeader(t, "owner1"))

	rec := doRequest(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without device_id, got %d", rec.Code)
	}
}

func TestDevicesListing(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeSyncAPI{devices: []*models.Device{{
		OwnerID:       "owner1",
		DeviceID:      "devA",
		DeviceType:    "ios",
		LastAckCursor: 7,
		LastSeenAt:    seen,
	}}}
	s := newTestServer(t, api, &fakeMediaAPI{})

	req := httptest.NewRequest(http.MethodGet, "/v1/devices", nil)
	req.Header.Set("Authorization", authHeader(t, "owner1"))

	rec := doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if api.gotOwner != "owner1" {
		t.Errorf("owner id not passed through, got %q", api.gotOwner)
	}

	var resp devicesResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if len(resp.Devices) != 1 || resp.Devices[0].DeviceID != "devA" || resp.Devices[0].LastAckCursor != 7 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestMediaUpload(t *testing.T) {
	media := &fakeMediaAPI{putKey: "owners/o1/2026/3/1/abc", putURL: "https://s3.example/put"}
	s := newTestServer(t, &fakeSyncAPI{}, media)

	req := httptest.NewRequest(http.MethodPost, "/v1/media/uploads", nil)
	req.Header.Set("Authorization", authHeader(t, "owner1"))

	rec := doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp uploadURLResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.StorageKey != media.putKey || resp.UploadURL != media.putURL {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestMediaDownloadExtractsKey(t *testing.T) {
	media := &fakeMediaAPI{getURL: "https://s3.example/get"}
	s := newTestServer(t, &fakeSyncAPI{}, media)

	req := httptest.NewRequest(http.MethodGet, "/v1/media/owners/o1/2026/3/1/abc", nil)
	req.Header.Set("Authorization", authHeader(t, "owner1"))

	rec := doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if media.gotKey != "owners/o1/2026/3/1/abc" {
		t.Errorf("key not extracted from path, got %q", media.gotKey)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	s := newTestServer(t, &fakeSyncAPI{}, &fakeMediaAPI{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
