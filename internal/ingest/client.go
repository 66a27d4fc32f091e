package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/testtrace/internal/attr"
	"github.com/tinytelemetry/testtrace/internal/auth"
	"github.com/tinytelemetry/testtrace/internal/timeline"
)

// DefaultConnectTimeout bounds the initial dial and handshake. Later
// requests use the per-call deadline.
const DefaultConnectTimeout = 5 * time.Second

// callDeadline bounds a single request/response round-trip.
const callDeadline = 30 * time.Second

// Client implements Gateway over a TCP JSON-RPC 2.0 connection.
// Calls are serialized; one request is in flight at a time.
type Client struct {
	conn     net.Conn
	mu       sync.Mutex
	nextID   int
	scanner  *bufio.Scanner
	encoder  *json.Encoder
	selected bool
}

// Dial connects to the ingest backend at addr and authenticates when the
// token is non-empty.
func Dial(addr string, timeout time.Duration, token auth.Token) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("ingest: dial %s: %w", addr, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	c := &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}
	if len(token) > 0 {
		if err := c.call("Authenticate", authenticateParams{Token: token.Hex()}, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ingest: authenticate: %w", err)
		}
	}
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("ingest: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(callDeadline))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("ingest: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("ingest: read: %w", err)
		}
		return fmt.Errorf("ingest: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("ingest: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("ingest: unmarshal result: %w", err)
		}
	}
	return nil
}

// OpenTimeline selects id as the ingestion target for this connection.
func (c *Client) OpenTimeline(id timeline.ID) error {
	if err := c.call("OpenTimeline", openTimelineParams{ID: string(id)}, nil); err != nil {
		return err
	}
	c.selected = true
	return nil
}

// CloseTimeline deselects the current timeline. This is local bookkeeping;
// the wire selection is replaced by the next OpenTimeline.
func (c *Client) CloseTimeline() {
	c.selected = false
}

// DeclareKey interns an attribute key name at the backend.
func (c *Client) DeclareKey(name string) (KeyHandle, error) {
	var handle KeyHandle
	if err := c.call("DeclareKey", declareKeyParams{Name: name}, &handle); err != nil {
		return 0, err
	}
	return handle, nil
}

// WriteTimelineMetadata attaches attributes to the selected timeline.
func (c *Client) WriteTimelineMetadata(attrs map[KeyHandle]attr.Value) error {
	if !c.selected {
		return ErrNoTimelineOpen
	}
	return c.call("TimelineMetadata", timelineMetadataParams{Attrs: attrs}, nil)
}

// SubmitEvent records one event on the selected timeline.
func (c *Client) SubmitEvent(ordering uint64, attrs map[KeyHandle]attr.Value) error {
	if !c.selected {
		return ErrNoTimelineOpen
	}
	return c.call("SubmitEvent", submitEventParams{Ordering: ordering, Attrs: attrs}, nil)
}

// Flush blocks until all previously submitted events are applied.
func (c *Client) Flush() error {
	return c.call("Flush", struct{}{}, nil)
}
