package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cinevault/backend/internal/models"
)

type hubStub struct {
	videoID  string
	snapshot models.VideoStats
}

func (h *hubStub) Serve(w http.ResponseWriter, _ *http.Request, videoID string, snapshot models.VideoStats) error {
	h.videoID, h.snapshot = videoID, snapshot
	w.WriteHeader(http.StatusOK)
	return nil
}

func TestLiveHandlerServe(t *testing.T) {
	videos := newVideoStoreStub()
	hub := &hubStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/videos/{id}/live", LiveHandler{Videos: videos, Hub: hub}.Serve)

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{name: "published", id: videoFree, status: http.StatusOK},
		{name: "trashed", id: videoTrash, status: http.StatusNotFound},
		{name: "missing", id: missingID, status: http.StatusNotFound},
		{name: "malformed", id: "abc", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub.videoID = ""
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+tt.id+"/live", nil))
			if rec.Code != tt.status {
				t.Fatalf("expected %d got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusOK && (hub.videoID != tt.id || hub.snapshot.VideoID != tt.id) {
				t.Fatalf("expected hub to receive the video snapshot, got %q %+v", hub.videoID, hub.snapshot)
			}
			if tt.status != http.StatusOK && hub.videoID != "" {
				t.Fatal("hub must not be reached for unavailable videos")
			}
		})
	}
}
