package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/tinytelemetry/testtrace/internal/session"
)

// hookMessage is one lifecycle notification piped in by the Robot
// Framework listener shim, one JSON object per line.
type hookMessage struct {
	Hook string `json:"hook"`
	Name string `json:"name"`
}

// Hook names accepted on the stream.
const (
	hookSuiteSetup     = "suite_setup"
	hookSuiteTeardown  = "suite_teardown"
	hookTestSetup      = "test_setup"
	hookTestTeardown   = "test_teardown"
	hookTestPassed     = "test_passed"
	hookTestFailed     = "test_failed"
	hookStartComponent = "start_component"
)

func parseHook(line []byte) (hookMessage, error) {
	var h hookMessage
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("malformed hook line: %w", err)
	}
	if h.Hook == "" {
		return h, fmt.Errorf("hook line missing \"hook\" field")
	}
	switch h.Hook {
	case hookSuiteTeardown:
	default:
		if h.Name == "" {
			return h, fmt.Errorf("hook %q missing \"name\" field", h.Hook)
		}
	}
	return h, nil
}

func applyHook(sess *session.Session, h hookMessage) error {
	switch h.Hook {
	case hookSuiteSetup:
		return sess.OnSuiteSetup(h.Name)
	case hookSuiteTeardown:
		return sess.OnSuiteTeardown()
	case hookTestSetup:
		return sess.OnTestSetup(h.Name)
	case hookTestTeardown:
		return sess.OnTestTeardown(h.Name)
	case hookTestPassed:
		return sess.OnTestPassed(h.Name)
	case hookTestFailed:
		return sess.OnTestFailed(h.Name)
	case hookStartComponent:
		nonce, err := sess.StartComponent(h.Name)
		if err != nil {
			return err
		}
		log.Printf("bridge: component %q started with nonce %d", h.Name, nonce)
		return nil
	default:
		return fmt.Errorf("unknown hook %q", h.Hook)
	}
}
