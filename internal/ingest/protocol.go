package ingest

import (
	"encoding/json"

	"github.com/tinytelemetry/testtrace/internal/attr"
)

// JSON-RPC 2.0 Method Reference
//
// The ingest wire protocol is newline-delimited JSON-RPC 2.0 over TCP.
// Attribute values use the tagged encoding from internal/attr; attribute
// maps are keyed by the decimal interned key handle.
//
//   Method              Params                                        Result
//   ─────────────────   ───────────────────────────────────────────   ──────
//   Authenticate        {Token: hex string}                           null
//   OpenTimeline        {ID: string}                                  null
//   DeclareKey          {Name: string}                                uint32
//   TimelineMetadata    {Attrs: map[handle]Value}                     null
//   SubmitEvent         {Ordering: uint64, Attrs: map[handle]Value}   null
//   Flush               (none)                                        null
//
// OpenTimeline selects the timeline for the calling connection; there is
// no wire message for deselection, a new OpenTimeline replaces it.
// DeclareKey is idempotent per name. Flush acknowledges once every prior
// SubmitEvent on the connection has been applied.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (rejected request)
//   -32001  Authentication required or rejected

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

const (
	codeParseError   = -32700
	codeNoMethod     = -32601
	codeBadParams    = -32602
	codeInternal     = -32603
	codeAppError     = -32000
	codeUnauthorized = -32001
)

type authenticateParams struct {
	Token string
}

type openTimelineParams struct {
	ID string
}

type declareKeyParams struct {
	Name string
}

type timelineMetadataParams struct {
	Attrs map[KeyHandle]attr.Value
}

type submitEventParams struct {
	Ordering uint64
	Attrs    map[KeyHandle]attr.Value
}
