package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectTimelineAttrsMergesFileUnderCLI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.yml")
	content := "site: lab-2\nbuild: 42\nwet: true\nrig: \"7\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write attrs file: %v", err)
	}

	attrs, err := collectTimelineAttrs(appConfig{
		TimelineAttrs:     []string{"operator=jo"},
		TimelineAttrsFile: path,
	})
	if err != nil {
		t.Fatalf("collectTimelineAttrs: %v", err)
	}

	want := []string{`build=42`, `rig="7"`, `site="lab-2"`, `wet=true`, `operator=jo`}
	if len(attrs) != len(want) {
		t.Fatalf("attrs = %v, want %v", attrs, want)
	}
	for i := range want {
		if attrs[i] != want[i] {
			t.Errorf("attrs[%d] = %q, want %q", i, attrs[i], want[i])
		}
	}
}

func TestCollectTimelineAttrsWithoutFile(t *testing.T) {
	attrs, err := collectTimelineAttrs(appConfig{TimelineAttrs: []string{"a=1"}})
	if err != nil {
		t.Fatalf("collectTimelineAttrs: %v", err)
	}
	if len(attrs) != 1 || attrs[0] != "a=1" {
		t.Fatalf("attrs = %v, want [a=1]", attrs)
	}
}

func TestCollectTimelineAttrsRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.yml")
	if err := os.WriteFile(path, []byte("key: [unclosed"), 0644); err != nil {
		t.Fatalf("write attrs file: %v", err)
	}
	if _, err := collectTimelineAttrs(appConfig{TimelineAttrsFile: path}); err == nil {
		t.Fatal("collectTimelineAttrs succeeded on malformed YAML")
	}
}
