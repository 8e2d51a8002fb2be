package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-latch-core/internal/history"
	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/reconcile"
	"github.com/nerrad567/gray-latch-core/internal/slot"
)

func TestListSlots(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/slots", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Slots []slotResponse `json:"slots"`
		Count int            `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 5 {
		t.Errorf("count = %d, want 5", resp.Count)
	}
	for _, s := range resp.Slots {
		if s.SyncStatus != reconcile.StateUnknown {
			t.Errorf("slot %d sync_status = %q, want unknown before first pull", s.ID, s.SyncStatus)
		}
	}
}

func TestGetSlot(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/slots/3", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp slotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != 3 {
		t.Errorf("id = %d, want 3", resp.ID)
	}
}

func TestGetSlot_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/slots/99", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetSlot_BadID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/slots/abc", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSaveSlot(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	body := `{"name": "Cleaner", "code": "1234", "status": "enabled"}`
	req := authedRequest(http.MethodPut, "/api/v1/slots/2", body, token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp slotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Name != "Cleaner" || resp.DesiredCode != "1234" || resp.DesiredStatus != slot.StatusEnabled {
		t.Errorf("slot = %+v", resp.Slot)
	}
	if resp.SyncStatus != reconcile.StateSynced {
		t.Errorf("sync_status = %q, want synced after successful push", resp.SyncStatus)
	}

	if deps.syncer.pushCount() != 1 {
		t.Fatalf("pushes = %d, want 1", deps.syncer.pushCount())
	}
	if deps.syncer.pushes[0].override {
		t.Error("push should not carry override without the query parameter")
	}
}

func TestSaveSlot_Override(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	body := `{"name": "Guest", "code": "5678", "status": "enabled"}`
	req := authedRequest(http.MethodPut, "/api/v1/slots/1?override=true", body, token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if deps.syncer.pushCount() != 1 || !deps.syncer.pushes[0].override {
		t.Errorf("pushes = %+v, want one override push", deps.syncer.pushes)
	}
}

func TestSaveSlot_EmptyPatch(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodPut, "/api/v1/slots/1", `{}`, token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSaveSlot_InvalidCode(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	body := `{"name": "Short", "code": "12", "status": "enabled"}`
	req := authedRequest(http.MethodPut, "/api/v1/slots/1", body, token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var apiErr Error
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if apiErr.Code != ErrCodeValidation {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeValidation)
	}
	if deps.syncer.pushCount() != 0 {
		t.Errorf("pushes = %d, want 0 for rejected patch", deps.syncer.pushCount())
	}
}

func TestSaveSlot_DuplicateCode(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	body := `{"name": "First", "code": "1234", "status": "enabled"}`
	req := authedRequest(http.MethodPut, "/api/v1/slots/1", body, token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first save status = %d; body: %s", w.Code, w.Body.String())
	}

	body = `{"name": "Second", "code": "1234", "status": "enabled"}`
	req = authedRequest(http.MethodPut, "/api/v1/slots/2", body, token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}

	var apiErr Error
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if apiErr.Code != ErrCodeConflict {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeConflict)
	}
}

func TestSaveSlot_PushFailureStillSaves(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)
	deps.syncer.pushErr = lock.ErrTimeout

	body := `{"name": "Cleaner", "code": "1234", "status": "enabled"}`
	req := authedRequest(http.MethodPut, "/api/v1/slots/2", body, token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// The save is durable; a failed push must not fail the request.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp slotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.DesiredCode != "1234" {
		t.Errorf("desired code = %q, want 1234", resp.DesiredCode)
	}
	if resp.SyncStatus != reconcile.StatePushRequired {
		t.Errorf("sync_status = %q, want push_required after failed push", resp.SyncStatus)
	}

	s, err := deps.repo.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.DesiredCode != "1234" {
		t.Errorf("desired code = %q, want persisted 1234", s.DesiredCode)
	}
}

func TestPushSlot_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		pushErr    error
		wantStatus int
		wantCode   string
	}{
		{"protected", reconcile.ErrSlotProtected, http.StatusConflict, ErrCodeSlotProtected},
		{"verification failed", reconcile.ErrVerificationFailed, http.StatusBadGateway, ErrCodeSyncFailed},
		{"timeout", lock.ErrTimeout, http.StatusGatewayTimeout, ErrCodeLockTimeout},
		{"unavailable", lock.ErrUnavailable, http.StatusServiceUnavailable, ErrCodeLockUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := testServer(t)
			router := srv.buildRouter()
			token := authToken(t, router)
			deps.syncer.pushErr = tt.pushErr

			name, code, status := "Cleaner", "1234", slot.StatusEnabled
			if _, err := deps.repo.Save(context.Background(), 2, &slot.Patch{Name: &name, Code: &code, Status: &status}); err != nil {
				t.Fatalf("Save: %v", err)
			}

			req := authedRequest(http.MethodPost, "/api/v1/slots/2/push", "", token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			var apiErr Error
			if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestPushSlot(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	name, code, status := "Cleaner", "1234", slot.StatusEnabled
	if _, err := deps.repo.Save(context.Background(), 3, &slot.Patch{Name: &name, Code: &code, Status: &status}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	req := authedRequest(http.MethodPost, "/api/v1/slots/3/push", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp slotResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SyncStatus != reconcile.StateSynced {
		t.Errorf("sync_status = %q, want synced", resp.SyncStatus)
	}
}

func TestPushSlot_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodPost, "/api/v1/slots/99/push", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestClearSlot(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	name, code, status := "Cleaner", "1234", slot.StatusEnabled
	if _, err := deps.repo.Save(context.Background(), 4, &slot.Patch{Name: &name, Code: &code, Status: &status}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	req := authedRequest(http.MethodDelete, "/api/v1/slots/4", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusNoContent, w.Body.String())
	}

	s, err := deps.repo.Get(context.Background(), 4)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Claimed() {
		t.Errorf("slot still claimed after clear: %+v", s)
	}
}

func TestPullSlot(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodPost, "/api/v1/slots/2/pull", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(deps.syncer.pulls) != 1 || deps.syncer.pulls[0] != 2 {
		t.Errorf("pulls = %v, want [2]", deps.syncer.pulls)
	}
}

func TestPullAll(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodPost, "/api/v1/slots/pull", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if deps.syncer.pullAlls != 1 {
		t.Errorf("pullAlls = %d, want 1", deps.syncer.pullAlls)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 5 {
		t.Errorf("count = %d, want 5", resp.Count)
	}
}

func TestPullAll_LockUnavailable(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)
	deps.syncer.pullErr = lock.ErrUnavailable

	req := authedRequest(http.MethodPost, "/api/v1/slots/pull", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestSlotHistory(t *testing.T) {
	srv, deps := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 2; i++ {
		e := &history.AccessEvent{SlotID: 1, Method: "keypad", UsageCount: i, OccurredAt: base.Add(time.Duration(i) * time.Minute)}
		if err := deps.hist.Record(context.Background(), e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	req := authedRequest(http.MethodGet, "/api/v1/slots/1/history", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Events []history.AccessEvent `json:"events"`
		Count  int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if len(resp.Events) == 2 && resp.Events[0].UsageCount != 2 {
		t.Errorf("first event usage_count = %d, want 2 (most recent first)", resp.Events[0].UsageCount)
	}
}

func TestSlotHistory_UnknownSlot(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/slots/99/history", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSlotHistory_BadLimit(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()
	token := authToken(t, router)

	req := authedRequest(http.MethodGet, "/api/v1/slots/1/history?limit=-1", "", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if metrics.Slots.Total != 5 {
		t.Errorf("slots.total = %d, want 5", metrics.Slots.Total)
	}
	if metrics.Slots.BySyncState["unknown"] != 5 {
		t.Errorf("slots.by_sync_state[unknown] = %d, want 5", metrics.Slots.BySyncState["unknown"])
	}
}
