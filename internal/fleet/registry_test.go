package fleet

import (
	"context"
	"errors"
	"testing"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/transport"
)

// fakeStore records upserts and can be told to fail.
type fakeStore struct {
	upserts int
	err     error
}

func (s *fakeStore) UpsertDevice(_ context.Context, _ device.Config, _ device.Status) error {
	if s.err != nil {
		return s.err
	}
	s.upserts++
	return nil
}

func newTestRegistry(store Store) *Registry {
	broker := transport.NewMemoryBroker()
	return NewRegistry(broker.Client(), transport.NewTopics(""), store, logging.New())
}

func quietParams(typ, uid string) CreateParams {
	return CreateParams{
		Type:       typ,
		UID:        uid,
		Name:       "Test Device",
		Room:       "salon",
		Additional: quietConfig(),
	}
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.RemoveAll()

	result, err := r.Create(context.Background(), quietParams("button", "btn-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Device.UID != "btn-1" || result.Device.State != device.StateRunning {
		t.Errorf("created device = %+v", result.Device)
	}
	if result.Warning != "" {
		t.Errorf("unexpected warning %q", result.Warning)
	}

	sim, ok := r.Get("btn-1")
	if !ok {
		t.Fatal("device not found after create")
	}
	if sim.Config().Room != "salon" {
		t.Errorf("room = %q", sim.Config().Room)
	}

	if err := r.Remove("btn-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := r.Get("btn-1"); ok {
		t.Error("device still present after remove")
	}
	if sim.State() != device.StateStopped {
		t.Errorf("removed device state = %s", sim.State())
	}
	if err := r.Remove("btn-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove error = %v", err)
	}
}

func TestRegistry_CreateValidation(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.RemoveAll()

	if _, err := r.Create(context.Background(), quietParams("toaster", "")); err == nil {
		t.Error("unknown type should fail")
	}
	p := quietParams("generic", "gen-1")
	p.Additional.Template = "no_such_template"
	if _, err := r.Create(context.Background(), p); err == nil {
		t.Error("unknown template should fail")
	}
	if _, ok := r.Get("gen-1"); ok {
		t.Error("failed create must not register a device")
	}

	if _, err := r.Create(context.Background(), quietParams("button", "dup-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create(context.Background(), quietParams("button", "dup-1")); err == nil {
		t.Error("duplicate uid should fail")
	}
}

func TestRegistry_GeneratedUID(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.RemoveAll()

	result, err := r.Create(context.Background(), quietParams("watch", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	uid := result.Device.UID
	if len(uid) < len("watch-")+8 || uid[:6] != "watch-" {
		t.Errorf("generated uid = %q, want watch- prefix with suffix", uid)
	}
}

func TestRegistry_StoreFailureIsPartialSuccess(t *testing.T) {
	store := &fakeStore{err: errors.New("db unreachable")}
	r := newTestRegistry(store)
	defer r.RemoveAll()

	p := quietParams("button", "btn-1")
	p.SaveToDatabase = true
	result, err := r.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("create should succeed despite store failure: %v", err)
	}
	if result.Warning == "" {
		t.Error("expected partial-success warning")
	}
	if _, ok := r.Get("btn-1"); !ok {
		t.Error("device should be active in memory")
	}
}

func TestRegistry_StoreUpsertOnSave(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)
	defer r.RemoveAll()

	p := quietParams("button", "btn-1")
	p.SaveToDatabase = true
	if _, err := r.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}

	// Without the flag the store is not touched.
	if _, err := r.Create(context.Background(), quietParams("button", "btn-2")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d after unsaved create, want 1", store.upserts)
	}
}

func TestRegistry_PerformAndEvents(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.RemoveAll()

	if _, err := r.Create(context.Background(), quietParams("button", "btn-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	status, err := r.Perform("btn-1", "trigger_press", map[string]any{"type": "single"})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if !status.Online {
		t.Error("status should report online")
	}
	if _, err := r.Perform("btn-1", "bogus_action", nil); !errors.Is(err, device.ErrUnknownCommand) {
		t.Errorf("bogus action error = %v", err)
	}
	if _, err := r.Perform("ghost", "trigger_press", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing device error = %v", err)
	}

	events, err := r.RecentEvents("btn-1", 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != device.KindPress {
		t.Errorf("events = %+v", events)
	}
}

func TestRegistry_StatsAndFailures(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.RemoveAll()

	r.Create(context.Background(), quietParams("button", "btn-1"))
	r.Create(context.Background(), quietParams("watch", "watch-1"))
	r.Perform("btn-1", "network_failure", nil)

	stats := r.Stats()
	if stats.Total != 2 {
		t.Errorf("total = %d", stats.Total)
	}
	if stats.Online != 1 {
		t.Errorf("online = %d, want 1 (btn-1 is offline)", stats.Online)
	}
	if stats.ByType[device.TypeButton] != 1 || stats.ByType[device.TypeWatch] != 1 {
		t.Errorf("by type = %+v", stats.ByType)
	}
	if stats.AvgBattery <= 0 || stats.AvgBattery > 100 {
		t.Errorf("avg battery = %v", stats.AvgBattery)
	}

	failures := r.ActiveFailures()
	if len(failures) != 1 || failures[0].DeviceID != "btn-1" || failures[0].Failure != "network_failure" {
		t.Errorf("failures = %+v", failures)
	}
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.RemoveAll()

	r.Create(context.Background(), quietParams("button", "b"))
	r.Create(context.Background(), quietParams("button", "a"))

	list := r.List()
	if len(list) != 2 || list[0].UID != "a" || list[1].UID != "b" {
		t.Errorf("list not sorted by uid: %+v", list)
	}

	if n := r.RemoveAll(); n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if len(r.List()) != 0 {
		t.Error("list not empty after RemoveAll")
	}
}
