package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sort"
	"sync"

	"github.com/tinytelemetry/testtrace/internal/attr"
	"github.com/tinytelemetry/testtrace/internal/auth"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (1 MB).
	scannerInitBufSize = 1024 * 1024
	// scannerMaxTokenSize is the maximum token size the scanner will accept (10 MB).
	scannerMaxTokenSize = 10 * 1024 * 1024
)

// EventRecord is one event as applied by the loopback backend.
type EventRecord struct {
	Timeline string
	Ordering uint64
	Attrs    map[string]attr.Value
}

// Snapshot is a point-in-time copy of the backend state, with interned
// handles resolved back to key names.
type Snapshot struct {
	Keys      map[string]KeyHandle
	Timelines map[string]map[string]attr.Value
	Events    []EventRecord
	Flushes   int
}

// ServerConfig holds tunable parameters for the loopback backend.
type ServerConfig struct {
	// RequiredToken, when non-empty, must be presented via Authenticate
	// before any other call on a connection is accepted.
	RequiredToken auth.Token
}

// Server is an in-process ingest backend speaking the wire protocol.
// It interns attribute keys, tracks the per-connection selected timeline,
// and records metadata and events in memory. Intended for tests and the
// local sink binary.
type Server struct {
	addr     string
	conf     ServerConfig
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}

	mu        sync.Mutex
	keys      map[string]KeyHandle
	keyNames  map[KeyHandle]string
	nextKey   KeyHandle
	timelines map[string]map[string]attr.Value
	events    []EventRecord
	flushes   int
}

// NewServer creates a loopback backend listening on addr (":0" picks a
// free port at Start).
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	s := &Server{
		addr:      addr,
		quit:      make(chan struct{}),
		keys:      make(map[string]KeyHandle),
		keyNames:  make(map[KeyHandle]string),
		timelines: make(map[string]map[string]attr.Value),
	}
	if len(conf) > 0 {
		s.conf = conf[0]
	}
	return s
}

// Start begins accepting connections.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ingest: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the active listen address. Before Start, it returns the
// configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes the listener and waits for connections to drain.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

// Snapshot returns a deep copy of the recorded backend state.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Keys:      make(map[string]KeyHandle, len(s.keys)),
		Timelines: make(map[string]map[string]attr.Value, len(s.timelines)),
		Events:    make([]EventRecord, len(s.events)),
		Flushes:   s.flushes,
	}
	for k, h := range s.keys {
		snap.Keys[k] = h
	}
	for id, md := range s.timelines {
		copied := make(map[string]attr.Value, len(md))
		for k, v := range md {
			copied[k] = v
		}
		snap.Timelines[id] = copied
	}
	copy(snap.Events, s.events)
	return snap
}

// TimelineIDs returns the known timeline ids in sorted order.
func (s *Server) TimelineIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timelines))
	for id := range s.timelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("ingest: accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// connState is per-connection protocol state.
type connState struct {
	authed   bool
	timeline string
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)
	state := &connState{}

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: codeParseError, Message: "parse error"}}
			encoder.Encode(resp)
			continue
		}

		resp := s.dispatch(state, req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(state *connState, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	ok := func() Response {
		resp.Result = json.RawMessage("null")
		return resp
	}
	appError := func(format string, args ...interface{}) Response {
		resp.Error = &RPCError{Code: codeAppError, Message: fmt.Sprintf(format, args...)}
		return resp
	}
	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: codeBadParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	if len(s.conf.RequiredToken) > 0 && !state.authed && req.Method != "Authenticate" {
		resp.Error = &RPCError{Code: codeUnauthorized, Message: "authentication required"}
		return resp
	}

	switch req.Method {
	case "Authenticate":
		var p authenticateParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if len(s.conf.RequiredToken) > 0 && p.Token != s.conf.RequiredToken.Hex() {
			resp.Error = &RPCError{Code: codeUnauthorized, Message: "bad token"}
			return resp
		}
		state.authed = true
		return ok()

	case "OpenTimeline":
		var p openTimelineParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if p.ID == "" {
			return appError("empty timeline id")
		}
		s.mu.Lock()
		if _, exists := s.timelines[p.ID]; !exists {
			s.timelines[p.ID] = make(map[string]attr.Value)
		}
		s.mu.Unlock()
		state.timeline = p.ID
		return ok()

	case "DeclareKey":
		var p declareKeyParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if p.Name == "" {
			return appError("empty key name")
		}
		s.mu.Lock()
		handle, exists := s.keys[p.Name]
		if !exists {
			s.nextKey++
			handle = s.nextKey
			s.keys[p.Name] = handle
			s.keyNames[handle] = p.Name
		}
		s.mu.Unlock()
		data, err := json.Marshal(handle)
		if err != nil {
			resp.Error = &RPCError{Code: codeInternal, Message: err.Error()}
			return resp
		}
		resp.Result = data
		return resp

	case "TimelineMetadata":
		var p timelineMetadataParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if state.timeline == "" {
			return appError("no timeline open")
		}
		named, err := s.resolveAttrs(p.Attrs)
		if err != nil {
			return appError("%v", err)
		}
		s.mu.Lock()
		md := s.timelines[state.timeline]
		for k, v := range named {
			md[k] = v
		}
		s.mu.Unlock()
		return ok()

	case "SubmitEvent":
		var p submitEventParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if state.timeline == "" {
			return appError("no timeline open")
		}
		named, err := s.resolveAttrs(p.Attrs)
		if err != nil {
			return appError("%v", err)
		}
		s.mu.Lock()
		s.events = append(s.events, EventRecord{
			Timeline: state.timeline,
			Ordering: p.Ordering,
			Attrs:    named,
		})
		s.mu.Unlock()
		return ok()

	case "Flush":
		// Requests are applied synchronously in dispatch order, so all
		// prior submissions on this connection are already durable.
		s.mu.Lock()
		s.flushes++
		s.mu.Unlock()
		return ok()

	default:
		resp.Error = &RPCError{Code: codeNoMethod, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

// resolveAttrs maps interned handles back to key names, rejecting handles
// that were never declared.
func (s *Server) resolveAttrs(attrs map[KeyHandle]attr.Value) (map[string]attr.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	named := make(map[string]attr.Value, len(attrs))
	for h, v := range attrs {
		name, exists := s.keyNames[h]
		if !exists {
			return nil, fmt.Errorf("unknown key handle %d", h)
		}
		named[name] = v
	}
	return named, nil
}
