package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message type identifiers carried in every control frame's
// message_type field.
const (
	MsgDatanodeHandshake = "DATANODE_HANDSHAKE"
	MsgDatanodeHeartbeat = "DATANODE_HEARTBEAT"
	MsgClient            = "CLIENT"
	MsgWritePipeline     = "WRITE_PIPELINE"
	MsgClientRead        = "CLIENT_READ"
)

// Client action types carried in a CLIENT message's action_type field.
const (
	ActionMkdir = "mkdir"
	ActionRmdir = "rmdir"
	ActionRm    = "rm"
	ActionIns   = "ins"
	ActionLs    = "ls"
	ActionCat   = "cat"
)

// Envelope reads just enough of a control frame to dispatch on.
type Envelope struct {
	MessageType string `json:"message_type"`
}

// Endpoint is a (host, port) pair. It marshals as a two-element JSON
// array, matching the wire shape of the original protocol's address
// tuples exactly.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// MarshalJSON renders the endpoint as ["host", port].
func (e Endpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Host, e.Port})
}

// UnmarshalJSON parses ["host", port] or ["host", "port"].
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var host string
	if err := json.Unmarshal(raw[0], &host); err != nil {
		return err
	}
	var port int
	if err := json.Unmarshal(raw[1], &port); err != nil {
		var portStr string
		if err2 := json.Unmarshal(raw[1], &portStr); err2 != nil {
			return err
		}
		p, err2 := strconv.Atoi(portStr)
		if err2 != nil {
			return err2
		}
		port = p
	}
	e.Host = host
	e.Port = port
	return nil
}

// NameKind is a (name, kind) directory entry, kind is "f" or "d". It
// marshals as a two-element JSON array.
type NameKind struct {
	Name string
	Kind string
}

func (nk NameKind) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{nk.Name, nk.Kind})
}

func (nk *NameKind) UnmarshalJSON(data []byte) error {
	var raw [2]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nk.Name, nk.Kind = raw[0], raw[1]
	return nil
}

// HandshakeMessage is exchanged in both directions for
// DATANODE_HANDSHAKE: the data node sends it with Handshake null,
// the name service echoes it back with Handshake and NamespaceID set.
type HandshakeMessage struct {
	MessageType     string   `json:"message_type"`
	SoftwareVersion string   `json:"software_version"`
	DatanodeID      string   `json:"datanode_id"`
	NamespaceID     *string  `json:"namespace_id"`
	AddressTuple    Endpoint `json:"address_tuple"`
	Handshake       *bool    `json:"handshake"`
}

// HeartbeatMessage is sent by a data node on each heartbeat tick; the
// name service sends no response.
type HeartbeatMessage struct {
	MessageType string   `json:"message_type"`
	DatanodeID  string   `json:"datanode_id"`
	BlockReport []string `json:"block_report"`
}

// ClientRequest is sent by the client for every CLIENT action.
type ClientRequest struct {
	MessageType string `json:"message_type"`
	ActionType  string `json:"action_type"`
	Path        string `json:"path"`
}

// ClientResponse is the name service's reply to a CLIENT request. Not
// every field is populated for every action; see the per-action
// handling in the nameservice package's Handler.HandleClient.
type ClientResponse struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message,omitempty"`
	BlockID       string     `json:"block_id,omitempty"`
	DataNodes     []Endpoint `json:"datanodes,omitempty"`
	DatanodeAddrs []Endpoint `json:"datanode_addrs,omitempty"`
	Contents      []NameKind `json:"contents,omitempty"`
}

// WritePipelineMessage opens a write pipeline hop: Datanodes is the
// remaining downstream chain after the receiver. When a data node
// forwards it, that node has already stored its own copy; the client
// sends it without holding any copy.
type WritePipelineMessage struct {
	MessageType string     `json:"message_type"`
	BlockID     string     `json:"block_id"`
	Datanodes   []Endpoint `json:"datanodes"`
}

// ClientReadRequest asks a data node for a block.
type ClientReadRequest struct {
	MessageType string `json:"message_type"`
	BlockID     string `json:"block_id"`
}

// ClientReadResponse precedes the data frame (if Success) on a
// CLIENT_READ reply.
type ClientReadResponse struct {
	Success bool `json:"success"`
}
