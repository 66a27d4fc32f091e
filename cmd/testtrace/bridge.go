package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/tinytelemetry/testtrace/internal/session"
	"gopkg.in/yaml.v3"
)

// runBridge connects a session to the backend and drives it from the
// hook stream on stdin. At EOF any still-active suite is torn down so
// buffered events are flushed before exit.
func runBridge(cfg appConfig) error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	extraAttrs, err := collectTimelineAttrs(cfg)
	if err != nil {
		return err
	}

	sess, err := session.Connect(cfg.BackendAddr, cfg.ConnectTimeout, session.Options{
		ExtraTimelineAttrs: extraAttrs,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	log.Printf("bridge: connected to %s", cfg.BackendAddr)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, cfg.MaxLineSize), cfg.MaxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		hook, err := parseHook(line)
		if err != nil {
			return err
		}
		if err := applyHook(sess, hook); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return session.NewError(session.KindIO, fmt.Errorf("reading hook stream: %w", err))
	}

	// The listener may exit without an explicit suite teardown.
	return sess.OnSuiteTeardown()
}

// collectTimelineAttrs merges the attrs file under the CLI-configured
// attribute list. CLI attrs win on duplicate keys because the session
// applies them last.
func collectTimelineAttrs(cfg appConfig) ([]string, error) {
	if cfg.TimelineAttrsFile == "" {
		return cfg.TimelineAttrs, nil
	}

	data, err := os.ReadFile(cfg.TimelineAttrsFile)
	if err != nil {
		return nil, fmt.Errorf("reading timeline-attrs-file: %w", err)
	}

	var fileAttrs map[string]any
	if err := yaml.Unmarshal(data, &fileAttrs); err != nil {
		return nil, fmt.Errorf("parsing timeline-attrs-file: %w", err)
	}

	keys := make([]string, 0, len(fileAttrs))
	for k := range fileAttrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := make([]string, 0, len(fileAttrs)+len(cfg.TimelineAttrs))
	for _, k := range keys {
		merged = append(merged, formatAttr(k, fileAttrs[k]))
	}
	merged = append(merged, cfg.TimelineAttrs...)
	return merged, nil
}

// formatAttr renders a YAML scalar as a "key=value" string in the typed
// attribute grammar. Strings are quoted so they stay strings.
func formatAttr(key string, value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%s=%q", key, v)
	default:
		return fmt.Sprintf("%s=%v", key, v)
	}
}
