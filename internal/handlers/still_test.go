package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"still_controller/internal/models"
	"still_controller/internal/service"
)

func newStillServices(ctl *mockControl, mon *mockMonitoring) *service.Service {
	return &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Control:       ctl,
		Monitoring:    mon,
	}
}

func doRequest(t *testing.T, s *service.Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := newTestRouter(s)
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer valid")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStillHandlers_GetState(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	snap := models.BaselineSnapshot(now)
	snap.Tick = 12
	snap.Phase = models.PhaseHeating
	snap.Reading = models.NewReading(55.5, 40, now)

	w := doRequest(t, newStillServices(&mockControl{}, &mockMonitoring{state: snap}), http.MethodGet, "/api/v1/still/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("state status=%d, body=%s", w.Code, w.Body.String())
	}
	var got models.SystemSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Tick != 12 || got.Phase != models.PhaseHeating || got.Reading.Temperature != 55.5 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestStillHandlers_GetStateError(t *testing.T) {
	w := doRequest(t, newStillServices(&mockControl{}, &mockMonitoring{err: errors.New("db down")}), http.MethodGet, "/api/v1/still/state", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStillHandlers_CommandsAreQueued(t *testing.T) {
	cases := []struct {
		method string
		path   string
		body   string
		call   string
	}{
		{http.MethodPost, "/api/v1/still/start", "", "start"},
		{http.MethodPost, "/api/v1/still/stop", "", "stop"},
		{http.MethodPost, "/api/v1/still/reset", "", "reset"},
		{http.MethodPost, "/api/v1/still/shutdown", "", "shutdown"},
		{http.MethodPost, "/api/v1/still/manual", `{"duty":40}`, "manual"},
		{http.MethodDelete, "/api/v1/still/manual", "", "clear_manual"},
		{http.MethodPut, "/api/v1/still/indicator", `{"r":255,"g":0,"b":0}`, "indicator"},
		{http.MethodDelete, "/api/v1/still/indicator", "", "clear_indicator"},
	}

	for _, tc := range cases {
		t.Run(tc.call, func(t *testing.T) {
			ctl := &mockControl{}
			mon := &mockMonitoring{state: models.BaselineSnapshot(time.Now())}
			w := doRequest(t, newStillServices(ctl, mon), tc.method, tc.path, tc.body)

			if w.Code != http.StatusAccepted {
				t.Fatalf("%s %s: status=%d body=%s", tc.method, tc.path, w.Code, w.Body.String())
			}
			if len(ctl.calls) != 1 || ctl.calls[0] != tc.call {
				t.Fatalf("expected one %q call, got %v", tc.call, ctl.calls)
			}

			var resp map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["status"] != statusQueued || resp["command"] != tc.call {
				t.Fatalf("unexpected body: %v", resp)
			}
			if _, ok := resp["state"]; !ok {
				t.Fatalf("expected state in response: %v", resp)
			}
		})
	}
}

func TestStillHandlers_ManualDutyForwarded(t *testing.T) {
	ctl := &mockControl{}
	w := doRequest(t, newStillServices(ctl, &mockMonitoring{}), http.MethodPost, "/api/v1/still/manual", `{"duty":0}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ctl.lastDuty != 0 || len(ctl.calls) != 1 {
		t.Fatalf("expected duty 0 forwarded once, got duty=%d calls=%v", ctl.lastDuty, ctl.calls)
	}
}

func TestStillHandlers_ManualDutyBadBody(t *testing.T) {
	for _, body := range []string{`{}`, `{"duty":"hot"}`, `not json`} {
		ctl := &mockControl{}
		w := doRequest(t, newStillServices(ctl, &mockMonitoring{}), http.MethodPost, "/api/v1/still/manual", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
		if len(ctl.calls) != 0 {
			t.Fatalf("body %s: control must not be called, got %v", body, ctl.calls)
		}
	}
}

func TestStillHandlers_IndicatorForwarded(t *testing.T) {
	ctl := &mockControl{}
	w := doRequest(t, newStillServices(ctl, &mockMonitoring{}), http.MethodPut, "/api/v1/still/indicator", `{"r":0,"g":128,"b":255}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ctl.lastColor != [3]uint8{0, 128, 255} {
		t.Fatalf("expected rgb 0,128,255 forwarded, got %v", ctl.lastColor)
	}
}

func TestStillHandlers_IndicatorBadBody(t *testing.T) {
	bodies := []string{`{}`, `{"r":0,"g":0}`, `{"r":256,"g":0,"b":0}`, `{"r":-1,"g":0,"b":0}`, `not json`}
	for _, body := range bodies {
		ctl := &mockControl{}
		w := doRequest(t, newStillServices(ctl, &mockMonitoring{}), http.MethodPut, "/api/v1/still/indicator", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
		if len(ctl.calls) != 0 {
			t.Fatalf("body %s: control must not be called, got %v", body, ctl.calls)
		}
	}
}

func TestStillHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"busy", fmt.Errorf("%w: queue full", service.ErrBusy), http.StatusServiceUnavailable},
		{"invalid duty", fmt.Errorf("%w: 150", service.ErrInvalidDuty), http.StatusBadRequest},
		{"other", errors.New("encode failed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctl := &mockControl{err: tc.err}
			w := doRequest(t, newStillServices(ctl, &mockMonitoring{}), http.MethodPost, "/api/v1/still/manual", `{"duty":150}`)
			if w.Code != tc.want {
				t.Fatalf("status: got %d, want %d (body=%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestStillHandlers_RequireAuth(t *testing.T) {
	r := newTestRouter(newStillServices(&mockControl{}, &mockMonitoring{}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/still/start", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
