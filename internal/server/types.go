// internal/server/types.go
package server

// RPCRequest is an RPC call received from a connected client.
type RPCRequest struct {
	ID     string        `json:"id"`     // request ID, echoed in the response
	Method string        `json:"method"` // method name, e.g. "GetGraphData"
	Params []interface{} `json:"params"` // positional arguments
}

// RPCResponse is the reply to an RPCRequest.
type RPCResponse struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// WSEvent is an event pushed from the daemon to clients.
type WSEvent struct {
	Type    string      `json:"type"`    // event name, e.g. "checkpoint:created"
	Payload interface{} `json:"payload"` // event data
}

// WSMessage is the envelope for everything on the wire.
type WSMessage struct {
	// Message kind: "rpc_request", "rpc_response", "event"
	Kind string `json:"kind"`

	// RPC request (kind == "rpc_request")
	Request *RPCRequest `json:"request,omitempty"`

	// RPC response (kind == "rpc_response")
	Response *RPCResponse `json:"response,omitempty"`

	// Event (kind == "event")
	Event *WSEvent `json:"event,omitempty"`
}
