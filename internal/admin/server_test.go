package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/metrics"
	"crewcall-sim/internal/transport"
)

func newTestServer(t *testing.T) (*Server, *fleet.Registry) {
	t.Helper()
	broker := transport.NewMemoryBroker()
	registry := fleet.NewRegistry(broker.Client(), transport.NewTopics(""), nil, logging.New())
	t.Cleanup(func() { registry.RemoveAll() })
	orchestrator := fleet.NewOrchestrator(broker.Client(), fleet.Options{}, logging.New())
	collector := metrics.NewCollector(metrics.Config{}, logging.New())
	return NewServer(registry, orchestrator, collector, logging.New()), registry
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func createQuiet(t *testing.T, s *Server, uid string) {
	t.Helper()
	body := `{"type":"button","name":"Cabin Button","room":"cabin-1","uid":"` + uid + `",
		"additional_config":{"press_interval_min":3600000000000,"press_interval_max":7200000000000,"status_interval":3600000000000}}`
	w := doRequest(t, s, http.MethodPost, "/devices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateDevice(t *testing.T) {
	s, registry := newTestServer(t)
	createQuiet(t, s, "btn-1")

	sim, ok := registry.Get("btn-1")
	if !ok {
		t.Fatal("device not registered")
	}
	if sim.State() != device.StateRunning {
		t.Errorf("state = %s", sim.State())
	}
}

func TestCreateDevice_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/devices", `{"type":"toaster"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type returned %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/devices", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body returned %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp["error"] == "" {
		t.Errorf("error response not JSON with message: %v %v", resp, err)
	}
}

func TestListDevices(t *testing.T) {
	s, _ := newTestServer(t)
	createQuiet(t, s, "btn-1")
	createQuiet(t, s, "btn-2")

	w := doRequest(t, s, http.MethodGet, "/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list returned %d", w.Code)
	}
	var resp struct {
		Devices []fleet.Summary       `json:"devices"`
		Stats   fleet.FleetStatistics `json:"stats"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Devices) != 2 || resp.Stats.Total != 2 {
		t.Errorf("devices = %d, stats = %+v", len(resp.Devices), resp.Stats)
	}
}

func TestGetDevice(t *testing.T) {
	s, _ := newTestServer(t)
	createQuiet(t, s, "btn-1")

	w := doRequest(t, s, http.MethodGet, "/devices/btn-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get returned %d", w.Code)
	}
	var resp struct {
		UID    string         `json:"uid"`
		State  device.State   `json:"state"`
		Events []device.Event `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UID != "btn-1" || resp.State != device.StateRunning {
		t.Errorf("resp = %+v", resp)
	}

	w = doRequest(t, s, http.MethodGet, "/devices/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing device returned %d", w.Code)
	}
}

func TestDeviceAction(t *testing.T) {
	s, registry := newTestServer(t)
	createQuiet(t, s, "btn-1")

	w := doRequest(t, s, http.MethodPost, "/devices/btn-1/action",
		`{"action":"trigger_press","data":{"type":"double"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("action returned %d: %s", w.Code, w.Body.String())
	}
	events, _ := registry.RecentEvents("btn-1", 10)
	if len(events) != 1 || events[0].Kind != device.KindPress {
		t.Errorf("events = %+v", events)
	}

	w = doRequest(t, s, http.MethodPost, "/devices/btn-1/action", `{"action":"warp_drive"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action returned %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/devices/btn-1/action", `{"data":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing action returned %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/devices/ghost/action", `{"action":"trigger_press"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing device returned %d", w.Code)
	}
}

func TestDeleteDevice(t *testing.T) {
	s, registry := newTestServer(t)
	createQuiet(t, s, "btn-1")

	w := doRequest(t, s, http.MethodDelete, "/devices/btn-1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete returned %d", w.Code)
	}
	if _, ok := registry.Get("btn-1"); ok {
		t.Error("device still registered")
	}
	w = doRequest(t, s, http.MethodDelete, "/devices/btn-1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete returned %d", w.Code)
	}
}

func TestFleetStatus(t *testing.T) {
	s, _ := newTestServer(t)
	createQuiet(t, s, "btn-1")

	w := doRequest(t, s, http.MethodGet, "/fleet/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("fleet status returned %d", w.Code)
	}
	var resp struct {
		Registry fleet.FleetStatistics `json:"registry"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Registry.Total != 1 {
		t.Errorf("registry stats = %+v", resp.Registry)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.collector.Sample()

	w := doRequest(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics returned %d", w.Code)
	}
	var resp struct {
		Current *metrics.Snapshot `json:"current"`
		Alerts  []metrics.Alert   `json:"alerts"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Current == nil || resp.Current.Timestamp.After(time.Now().Add(time.Minute)) {
		t.Errorf("current snapshot = %+v", resp.Current)
	}

	// Disabled metrics report 404, not a panic.
	s.collector = nil
	w = doRequest(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("disabled metrics returned %d", w.Code)
	}
}
