package session_test

import (
	"testing"
	"time"

	"github.com/tinytelemetry/testtrace/internal/ingest"
	"github.com/tinytelemetry/testtrace/internal/session"
)

// TestSessionOverWireBackend drives a full lifecycle through the real
// TCP client against the loopback backend.
func TestSessionOverWireBackend(t *testing.T) {
	t.Setenv(session.RunIDEnvVar, "wire-run")

	srv := ingest.NewServer("127.0.0.1:0")
	if err := srv.Start(); err != nil {
		t.Fatalf("backend Start: %v", err)
	}
	t.Cleanup(srv.Stop)

	gw, err := ingest.Dial(srv.Addr(), time.Second, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	s, err := session.New(gw, session.Options{
		ExtraTimelineAttrs: []string{"site=lab-2"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.OnSuiteSetup("Integration Suite"); err != nil {
		t.Fatalf("OnSuiteSetup: %v", err)
	}
	if err := s.OnTestSetup("Boots Cleanly"); err != nil {
		t.Fatalf("OnTestSetup: %v", err)
	}
	if _, err := s.StartComponent("flight-controller"); err != nil {
		t.Fatalf("StartComponent: %v", err)
	}
	if err := s.OnTestPassed("Boots Cleanly"); err != nil {
		t.Fatalf("OnTestPassed: %v", err)
	}
	if err := s.OnTestTeardown("Boots Cleanly"); err != nil {
		t.Fatalf("OnTestTeardown: %v", err)
	}
	if err := s.OnSuiteTeardown(); err != nil {
		t.Fatalf("OnSuiteTeardown: %v", err)
	}

	snap := srv.Snapshot()

	if len(snap.Timelines) != 1 {
		t.Fatalf("timelines = %d, want 1", len(snap.Timelines))
	}
	for id, md := range snap.Timelines {
		if got := md["timeline.run_id"].String(); got != "wire-run" {
			t.Errorf("run_id = %s, want wire-run", got)
		}
		if got := md["timeline.site"].String(); got != "lab-2" {
			t.Errorf("timeline.site = %s, want lab-2", got)
		}
		if got := md["timeline.id"].String(); got != id {
			t.Errorf("timeline.id = %s, want %s", got, id)
		}
	}

	if len(snap.Events) != 4 {
		t.Fatalf("events = %d, want 4", len(snap.Events))
	}
	for i, ev := range snap.Events {
		if ev.Ordering != uint64(i) {
			t.Errorf("event %d ordering = %d, want %d", i, ev.Ordering, i)
		}
	}
	if snap.Flushes != 1 {
		t.Errorf("flushes = %d, want 1", snap.Flushes)
	}

	// Every key was declared exactly once: the backend interned each
	// distinct name and nothing else.
	wantKeys := map[string]bool{
		"timeline.name": true, "timeline.robot_framework.suite.name": true,
		"timeline.robot_framework.test.name": true, "timeline.id": true,
		"timeline.clock_style": true, "timeline.run_id": true, "timeline.site": true,
		"event.name": true, "event.suite.name": true, "event.test.name": true,
		"event.timestamp": true, "event.nonce": true, "event.component_name": true,
		"event.test.result": true, "event.test.result.code": true,
	}
	if len(snap.Keys) != len(wantKeys) {
		t.Errorf("declared keys = %d, want %d: %v", len(snap.Keys), len(wantKeys), snap.Keys)
	}
	for k := range wantKeys {
		if _, ok := snap.Keys[k]; !ok {
			t.Errorf("key %s never declared", k)
		}
	}
}
