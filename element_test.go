package datastate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	datastate "github.com/goliatone/go-datastate"
	"github.com/goliatone/go-datastate/pkg/store"
)

func TestWidgetStateScenario(t *testing.T) {
	s := store.New()
	kind := mustKind(t, "widget", datastate.WithDataProperty("state"))
	state := map[string]any{"status": "default"}

	widget, err := datastate.NewElement(kind, datastate.Accessors{
		"state": datastate.Bind(&state),
	}, datastate.WithControllerOptions(datastate.WithStore(s)))
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	if err := widget.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	got, ok := s.Get("widget.state")
	if !ok {
		t.Fatalf("expected widget.state to be present")
	}
	if diff := cmp.Diff(map[string]any{"status": "default"}, got); diff != "" {
		t.Fatalf("default state mismatch (-want +got):\n%s", diff)
	}

	state["status"] = "updated"
	if _, err := widget.Dispatch("state-changed"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, _ = s.Get("widget.state")
	if diff := cmp.Diff(map[string]any{"status": "updated"}, got); diff != "" {
		t.Fatalf("updated state mismatch (-want +got):\n%s", diff)
	}

	widget.Disconnect()
	if _, ok := s.Get("widget.state"); ok {
		t.Fatalf("expected widget.state to be absent after the only instance disconnects")
	}
}

func TestInstanceScopedScenario(t *testing.T) {
	s := store.New()
	kind := mustKind(t, "user-widget",
		datastate.WithInstanceProperty("userId"),
		datastate.WithDataProperty("user"),
	)
	user := map[string]any{"userName": "unknown"}

	widget, err := datastate.NewElement(kind, datastate.Accessors{
		"user": datastate.Bind(&user),
	}, datastate.WithInstanceID("1234"), datastate.WithControllerOptions(datastate.WithStore(s)))
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	if err := widget.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	want := map[string]any{"userName": "unknown"}
	got, _ := s.Get("user-widget.user.1234")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state at 1234 mismatch (-want +got):\n%s", diff)
	}

	if err := widget.SetInstanceID("9876"); err != nil {
		t.Fatalf("SetInstanceID: %v", err)
	}
	if _, ok := s.Get("user-widget.user.1234"); ok {
		t.Fatalf("old instance path should be released")
	}
	got, _ = s.Get("user-widget.user.9876")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state at 9876 mismatch (-want +got):\n%s", diff)
	}
	if got := widget.StatePath("user"); got != "user-widget.user.9876" {
		t.Fatalf("unexpected state path %q", got)
	}
}

func TestRebindKeepsPathOwnedByOthers(t *testing.T) {
	s := store.New()
	kind := mustKind(t, "user-widget",
		datastate.WithInstanceProperty("userId"),
		datastate.WithDataProperty("user"),
	)
	newWidget := func(id string, name string) *datastate.Element {
		user := map[string]any{"userName": name}
		e, err := datastate.NewElement(kind, datastate.Accessors{
			"user": datastate.Bind(&user),
		}, datastate.WithInstanceID(id), datastate.WithControllerOptions(datastate.WithStore(s)))
		if err != nil {
			t.Fatalf("NewElement: %v", err)
		}
		if err := e.Connect(); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		return e
	}

	moving := newWidget("1", "ann")
	_ = newWidget("1", "bob")
	_ = newWidget("2", "cyd")

	if err := moving.SetInstanceID("2"); err != nil {
		t.Fatalf("SetInstanceID: %v", err)
	}
	if got := s.RefCount("user-widget.user.1"); got != 1 {
		t.Fatalf("path 1 should keep one owner, got %d", got)
	}
	if got := s.RefCount("user-widget.user.2"); got != 2 {
		t.Fatalf("path 2 should have two owners, got %d", got)
	}
	got, _ := s.Get("user-widget.user.2")
	if diff := cmp.Diff(map[string]any{"userName": "cyd"}, got); diff != "" {
		t.Fatalf("moving into an existing path adopts its value (-want +got):\n%s", diff)
	}
}

func TestSharedPropertyIgnoresInstance(t *testing.T) {
	kind := mustKind(t, "user-widget",
		datastate.WithInstanceProperty("userId"),
		datastate.WithDataProperty("user"),
		datastate.WithDataProperty("theme", datastate.WithSharedState()),
	)
	user, theme := map[string]any{}, "dark"
	e, err := datastate.NewElement(kind, datastate.Accessors{
		"user":  datastate.Bind(&user),
		"theme": datastate.Bind(&theme),
	}, datastate.WithInstanceID("42"), datastate.WithControllerOptions(datastate.WithStore(store.New())))
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	if got := e.StatePath("theme"); got != "user-widget.theme" {
		t.Fatalf("shared property path %q", got)
	}
	if got := e.StatePath("user"); got != "user-widget.user.42" {
		t.Fatalf("scoped property path %q", got)
	}
}

func TestMissingInstanceIDFallsBackToSharedPath(t *testing.T) {
	kind := mustKind(t, "user-widget",
		datastate.WithInstanceProperty("userId"),
		datastate.WithDataProperty("user"),
	)
	user := map[string]any{}
	e, err := datastate.NewElement(kind, datastate.Accessors{
		"user": datastate.Bind(&user),
	}, datastate.WithControllerOptions(datastate.WithStore(store.New())))
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	if got := e.StatePath("user"); got != "user-widget.user" {
		t.Fatalf("expected unscoped path, got %q", got)
	}
}

func TestDispatchIgnoresUndeclaredEvents(t *testing.T) {
	s := store.New()
	kind := mustKind(t, "widget", datastate.WithDataProperty("state", datastate.WithChangeEvent("state-updated")))
	state := "a"
	renders := 0
	e, err := datastate.NewElement(kind, datastate.Accessors{
		"state": datastate.Bind(&state),
	}, datastate.WithRenderFunc(func() { renders++ }), datastate.WithControllerOptions(datastate.WithStore(s)))
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	if err := e.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	handled, err := e.Dispatch("state-changed")
	if err != nil || handled {
		t.Fatalf("undeclared event should be ignored, handled=%v err=%v", handled, err)
	}
	state = "b"
	handled, err = e.Dispatch("state-updated")
	if err != nil || !handled {
		t.Fatalf("declared event should publish, handled=%v err=%v", handled, err)
	}
	if got, _ := s.Get("widget.state"); got != "b" {
		t.Fatalf("expected published value, got %v", got)
	}
	if renders != 1 || e.Renders() != 1 {
		t.Fatalf("expected one render, got %d/%d", renders, e.Renders())
	}
}

func TestElementsShareUpdates(t *testing.T) {
	s := store.New()
	kind := mustKind(t, "widget", datastate.WithDataProperty("state"))
	a, b := "a", "b"
	opts := datastate.WithControllerOptions(datastate.WithStore(s))
	first, err := datastate.NewElement(kind, datastate.Accessors{"state": datastate.Bind(&a)}, opts)
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	second, err := datastate.NewElement(kind, datastate.Accessors{"state": datastate.Bind(&b)}, opts)
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	_ = first.Connect()
	_ = second.Connect()
	if b != "a" {
		t.Fatalf("second element should adopt first value, got %q", b)
	}

	a = "z"
	if _, err := first.Dispatch("state-changed"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if b != "z" || second.Renders() != 1 {
		t.Fatalf("second element should sync and render, got %q renders=%d", b, second.Renders())
	}
	if !first.Connected() {
		t.Fatalf("expected first element connected")
	}
	if _, err := datastate.NewElement(kind, datastate.Accessors{}, opts); err == nil {
		t.Fatalf("expected missing accessor error")
	}
}
