package bridge

import "encoding/json"

// Inbound messages carry no single type tag. A frame is classified by key
// presence, tried in a fixed priority order:
//
//  1. input_response (event == "input_response")
//  2. command (zKey or cmd present)
//  3. administrative (action in the known admin set)
//  4. unrecognized
//
// Unrecognized frames are rejected rather than echoed to peers.

// MessageKind identifies the decoded shape of an inbound frame.
type MessageKind int

const (
	KindUnrecognized MessageKind = iota
	KindCommand
	KindAdmin
	KindInputResponse
)

// CommandMessage is a command-dispatch request.
type CommandMessage struct {
	ZKey        string         `json:"zKey,omitempty"`
	Cmd         string         `json:"cmd,omitempty"`
	ZHorizontal string         `json:"zHorizontal,omitempty"`
	Action      string         `json:"action,omitempty"`
	Data        map[string]any `json:"data,omitempty"`

	// CacheTTL overrides the default query-cache TTL, in seconds.
	CacheTTL float64 `json:"cache_ttl,omitempty"`

	// NoCache bypasses the query cache for this request.
	NoCache bool `json:"no_cache,omitempty"`

	RequestID string `json:"_requestId,omitempty"`
}

// Name returns the command name, preferring zKey over cmd.
func (m *CommandMessage) Name() string {
	if m.ZKey != "" {
		return m.ZKey
	}
	return m.Cmd
}

// AdminMessage is a cache-administration request.
type AdminMessage struct {
	Action string  `json:"action"`
	Model  string  `json:"model,omitempty"`
	TTL    float64 `json:"ttl,omitempty"`
}

// Administrative actions.
const (
	AdminGetSchema   = "get_schema"
	AdminClearCache  = "clear_cache"
	AdminCacheStats  = "cache_stats"
	AdminSetQueryTTL = "set_query_cache_ttl"
)

var adminActions = map[string]bool{
	AdminGetSchema:   true,
	AdminClearCache:  true,
	AdminCacheStats:  true,
	AdminSetQueryTTL: true,
}

// InputResponseMessage answers a pending input_request.
type InputResponseMessage struct {
	Event     string `json:"event"`
	RequestID string `json:"requestId"`
	Value     any    `json:"value"`
}

// Inbound is the decoded form of one inbound frame. Exactly one of the
// shape fields is non-nil, selected by Kind.
type Inbound struct {
	Kind    MessageKind
	Command *CommandMessage
	Admin   *AdminMessage
	Input   *InputResponseMessage
}

// Decode classifies and decodes one inbound frame.
func Decode(data []byte) (*Inbound, error) {
	var probe struct {
		Event  string          `json:"event"`
		ZKey   json.RawMessage `json:"zKey"`
		Cmd    json.RawMessage `json:"cmd"`
		Action string          `json:"action"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, ErrUnrecognizedMessage
	}

	switch {
	case probe.Event == "input_response":
		var m InputResponseMessage
		if err := json.Unmarshal(data, &m); err != nil || m.RequestID == "" {
			return nil, ErrUnrecognizedMessage
		}
		return &Inbound{Kind: KindInputResponse, Input: &m}, nil

	case len(probe.ZKey) > 0 || len(probe.Cmd) > 0:
		var m CommandMessage
		if err := json.Unmarshal(data, &m); err != nil || m.Name() == "" {
			return nil, ErrUnrecognizedMessage
		}
		return &Inbound{Kind: KindCommand, Command: &m}, nil

	case adminActions[probe.Action]:
		var m AdminMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrUnrecognizedMessage
		}
		return &Inbound{Kind: KindAdmin, Admin: &m}, nil
	}

	return &Inbound{Kind: KindUnrecognized}, ErrUnrecognizedMessage
}

// Response is the terminal success message for one request.
type Response struct {
	Result    any    `json:"result"`
	Cached    bool   `json:"_cached,omitempty"`
	RequestID string `json:"_requestId,omitempty"`
}

// ErrorResponse is the terminal failure message for one request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"_requestId,omitempty"`
}

// Event is a server-initiated message (connection_info, display).
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Event names used in outbound frames.
const (
	EventConnectionInfo = "connection_info"
	EventDisplay        = "display"
	EventInputRequest   = "input_request"
	EventInputResponse  = "input_response"
)

// InputRequestMessage asks the client for interactive input.
type InputRequestMessage struct {
	Event     string   `json:"event"`
	RequestID string   `json:"requestId"`
	Type      string   `json:"type"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options,omitempty"`
}
