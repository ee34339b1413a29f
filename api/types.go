// Package api defines the wire types shared by the server, the dispatcher,
// and the Go client.
package api

import (
	"encoding/json"
	"fmt"
)

// Response type values.
const (
	TypeSuccess = "success"
	TypeError   = "ERROR"
)

// IntBool marshals as the legacy 0/1 integers the wire protocol uses for
// booleans while accepting true/false on input.
type IntBool bool

// MarshalJSON emits 0 or 1.
func (b IntBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1, true/false, and their string forms.
func (b *IntBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "0", "false", `"0"`, `"false"`, `""`, "null":
		*b = false
	case "1", "true", `"1"`, `"true"`:
		*b = true
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid boolean value %s", data)
		}
		*b = n != 0
	}
	return nil
}

// Response is the envelope every request produces exactly once.
type Response struct {
	// Type is "success" or "ERROR".
	Type string `json:"type"`
	// Message is the human-readable outcome.
	Message string `json:"message"`
	// Data carries command-specific payloads (host name lists, table rows);
	// null when the command has none.
	Data any `json:"data"`
	// Temporary hints that an error is contention-style and the client may
	// retry. Meaningful only for errors.
	Temporary IntBool `json:"temporary"`
}

// Success builds a success response.
func Success(message string, data any) *Response {
	return &Response{Type: TypeSuccess, Message: message, Data: data}
}

// Error builds an error response.
func Error(message string, temporary bool) *Response {
	return &Response{Type: TypeError, Message: message, Temporary: IntBool(temporary)}
}

// IsError reports whether the response is an error envelope.
func (r *Response) IsError() bool {
	return r.Type == TypeError
}

// Request is the decoded JSON-mode request body.
type Request struct {
	Cmd    string         `json:"cmd"`
	Params map[string]any `json:"params"`
}

// Command names accepted by the dispatcher.
const (
	CmdAddClass         = "add_class"
	CmdAddHost          = "add_host"
	CmdAddResource      = "add_resource"
	CmdAddResourceClass = "add_resource_class"
	CmdAddNextUser      = "add_next_user"
	CmdDelClass         = "del_class"
	CmdDelHost          = "del_host"
	CmdDelNextUser      = "del_next_user"
	CmdGetCurrentUser   = "get_current_user"
	CmdListHosts        = "list_hosts"
	CmdListClasses      = "list_classes"
	CmdModifyHost       = "modify_host"
	CmdReleaseResource  = "release_resource"
	CmdReleaseRsvp      = "release_rsvp"
	CmdRenewRsvp        = "renew_rsvp"
	CmdReviveHost       = "revive_host"
	CmdRsvpClass        = "rsvp_class"
	CmdRsvpHost         = "rsvp_host"
	CmdVerifyRsvp       = "verify_rsvp"
)
