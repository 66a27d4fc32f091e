package session

import (
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/testtrace/internal/attr"
	"github.com/tinytelemetry/testtrace/internal/auth"
	"github.com/tinytelemetry/testtrace/internal/ingest"
	"github.com/tinytelemetry/testtrace/internal/timeline"
)

// RunIDEnvVar selects the run identifier correlating every timeline of
// one test-run invocation. When unset, a random identifier is generated
// once per session.
const RunIDEnvVar = "MODALITY_RUN_ID"

// Options configures a session.
type Options struct {
	// ExtraTimelineAttrs are "key=value" strings merged, under a
	// "timeline." prefix, into every newly created timeline's metadata.
	ExtraTimelineAttrs []string

	// Clock overrides the wall-clock source for event timestamps.
	// Defaults to time.Now.
	Clock func() time.Time
}

// Session converts the test-execution lifecycle into ordered events on
// per-test timelines. Public operations are serialized and block until
// the underlying round-trips complete; there is no background work and
// no cancellation.
type Session struct {
	mu sync.Mutex
	gw ingest.Gateway

	clock              func() time.Time
	activeSuite        string
	timelines          *timeline.Registry
	extraTimelineAttrs []attr.KeyValue
	keys               map[string]ingest.KeyHandle
	ordering           uint64
	nonce              uint32
	runID              string
}

// New builds a session over an already connected gateway.
func New(gw ingest.Gateway, opts Options) (*Session, error) {
	extra := make([]attr.KeyValue, 0, len(opts.ExtraTimelineAttrs))
	for _, raw := range opts.ExtraTimelineAttrs {
		kv, err := attr.ParseKeyEqValue(raw)
		if err != nil {
			return nil, NewError(KindConfigParse, err)
		}
		extra = append(extra, kv)
	}

	runID := os.Getenv(RunIDEnvVar)
	if runID == "" {
		runID = uuid.NewString()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Session{
		gw:                 gw,
		clock:              clock,
		timelines:          timeline.NewRegistry(),
		extraTimelineAttrs: extra,
		keys:               make(map[string]ingest.KeyHandle),
		nonce:              1,
		runID:              runID,
	}, nil
}

// Connect loads the auth token, dials the ingest backend, and builds a
// session over the resulting gateway.
func Connect(addr string, timeout time.Duration, opts Options) (*Session, error) {
	token, err := auth.Load()
	if err != nil {
		if errors.Is(err, auth.ErrParse) {
			return nil, NewError(KindAuthParse, err)
		}
		return nil, NewError(KindAuthLoad, err)
	}

	gw, err := ingest.Dial(addr, timeout, token)
	if err != nil {
		return nil, NewError(KindClientInit, err)
	}
	return New(gw, opts)
}

// Close releases the gateway connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gw.Close()
}

// OnSuiteSetup makes suiteName the active suite. An already active suite
// is torn down first; a teardown failure propagates and leaves no suite
// active.
func (s *Session) OnSuiteSetup(suiteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSuite != "" {
		if err := s.suiteTeardownLocked(); err != nil {
			return err
		}
	}
	log.Printf("session: suite setup %q", suiteName)
	s.activeSuite = suiteName
	return nil
}

// OnSuiteTeardown closes the current timeline selection and flushes all
// buffered events. With no active suite it is a no-op.
func (s *Session) OnSuiteTeardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suiteTeardownLocked()
}

func (s *Session) suiteTeardownLocked() error {
	if s.activeSuite == "" {
		return nil
	}
	log.Printf("session: suite teardown %q", s.activeSuite)
	s.activeSuite = ""
	s.gw.CloseTimeline()
	if err := s.gw.Flush(); err != nil {
		return NewError(KindIngest, err)
	}
	return nil
}

// OnTestSetup opens the timeline for testName, creating it and writing
// its metadata on first encounter, then emits a test_setup event.
func (s *Session) OnTestSetup(testName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSuite == "" {
		return NewError(KindNoSuiteActive, nil)
	}
	suiteName := s.activeSuite

	id, isNew := s.timelines.ResolveOrCreate(testName)
	if err := s.gw.OpenTimeline(id); err != nil {
		return NewError(KindIngest, err)
	}

	if isNew {
		if err := s.writeTimelineMetadataLocked(id, suiteName, testName); err != nil {
			return err
		}
	}

	return s.emitLocked([]attr.KeyValue{
		{Key: "event.name", Value: attr.String("test_setup")},
		{Key: "event.suite.name", Value: attr.String(suiteName)},
		{Key: "event.test.name", Value: attr.String(testName)},
	})
}

// OnTestTeardown removes testName's timeline mapping and, if it was
// present, emits a test_teardown event on it. A subsequent setup with the
// same name allocates a fresh timeline.
func (s *Session) OnTestTeardown(testName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSuite == "" {
		return NewError(KindNoSuiteActive, nil)
	}
	suiteName := s.activeSuite

	id, ok := s.timelines.Remove(testName)
	if !ok {
		return nil
	}
	if err := s.gw.OpenTimeline(id); err != nil {
		return NewError(KindIngest, err)
	}
	return s.emitLocked([]attr.KeyValue{
		{Key: "event.name", Value: attr.String("test_teardown")},
		{Key: "event.suite.name", Value: attr.String(suiteName)},
		{Key: "event.test.name", Value: attr.String(testName)},
	})
}

// OnTestPassed emits a passed test_result event on testName's timeline.
// A test that was never set up is a silent no-op.
func (s *Session) OnTestPassed(testName string) error {
	return s.onTestResult(testName, "passed", 0)
}

// OnTestFailed emits a failed test_result event on testName's timeline.
// A test that was never set up is a silent no-op.
func (s *Session) OnTestFailed(testName string) error {
	return s.onTestResult(testName, "failed", 1)
}

func (s *Session) onTestResult(testName, result string, code int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSuite == "" {
		return NewError(KindNoSuiteActive, nil)
	}
	suiteName := s.activeSuite

	id, ok := s.timelines.Get(testName)
	if !ok {
		return nil
	}
	if err := s.gw.OpenTimeline(id); err != nil {
		return NewError(KindIngest, err)
	}
	return s.emitLocked([]attr.KeyValue{
		{Key: "event.name", Value: attr.String("test_result")},
		{Key: "event.suite.name", Value: attr.String(suiteName)},
		{Key: "event.test.name", Value: attr.String(testName)},
		{Key: "event.test.result", Value: attr.String(result)},
		{Key: "event.test.result.code", Value: attr.Int(code)},
	})
}

// StartComponent emits a start_component marker and returns its nonce for
// correlation with events the caller emits itself. The event lands on
// whichever timeline is currently selected.
func (s *Session) StartComponent(componentName string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.nonce
	s.nonce++
	err := s.emitLocked([]attr.KeyValue{
		{Key: "event.name", Value: attr.String("start_component")},
		{Key: "event.nonce", Value: attr.Int(int64(nonce))},
		{Key: "event.component_name", Value: attr.String(componentName)},
	})
	if err != nil {
		return 0, err
	}
	return nonce, nil
}

// writeTimelineMetadataLocked declares and writes the fixed identity keys
// plus every configured extra attribute for a newly created timeline.
func (s *Session) writeTimelineMetadataLocked(id timeline.ID, suiteName, testName string) error {
	pairs := []attr.KeyValue{
		{Key: "timeline.name", Value: attr.String("robot_framework")},
		{Key: "timeline.robot_framework.suite.name", Value: attr.String(suiteName)},
		{Key: "timeline.robot_framework.test.name", Value: attr.String(testName)},
		{Key: "timeline.id", Value: attr.TimelineID(string(id))},
		{Key: "timeline.clock_style", Value: attr.String("utc")},
		{Key: "timeline.run_id", Value: attr.String(s.runID)},
	}
	for _, kv := range s.extraTimelineAttrs {
		pairs = append(pairs, attr.KeyValue{Key: "timeline." + kv.Key, Value: kv.Value})
	}

	attrs := make(map[ingest.KeyHandle]attr.Value, len(pairs))
	for _, kv := range pairs {
		h, err := s.declareKeyLocked(kv.Key)
		if err != nil {
			return err
		}
		attrs[h] = kv.Value
	}
	if err := s.gw.WriteTimelineMetadata(attrs); err != nil {
		return NewError(KindIngest, err)
	}
	return nil
}

// emitLocked resolves every attribute name, injects the event timestamp,
// and submits the event with the current ordering token. The token is
// consumed only on success.
func (s *Session) emitLocked(pairs []attr.KeyValue) error {
	attrs := make(map[ingest.KeyHandle]attr.Value, len(pairs)+1)
	for _, kv := range pairs {
		h, err := s.declareKeyLocked(kv.Key)
		if err != nil {
			return err
		}
		attrs[h] = kv.Value
	}

	h, err := s.declareKeyLocked("event.timestamp")
	if err != nil {
		return err
	}
	attrs[h] = attr.Timestamp(uint64(s.clock().UnixNano()))

	if err := s.gw.SubmitEvent(s.ordering, attrs); err != nil {
		return NewError(KindIngest, err)
	}
	s.ordering++
	return nil
}

// declareKeyLocked returns the interned handle for name, declaring it at
// the backend on first use. No name is ever declared twice.
func (s *Session) declareKeyLocked(name string) (ingest.KeyHandle, error) {
	if h, ok := s.keys[name]; ok {
		return h, nil
	}
	h, err := s.gw.DeclareKey(name)
	if err != nil {
		return 0, NewError(KindIngest, err)
	}
	s.keys[name] = h
	return h, nil
}
