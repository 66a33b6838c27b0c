package websockets

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// code of errors raised by the client rather than the server
const clientErrorCode = -1

var counter uint64

// Syncer is a command waiting for its response.
type Syncer interface {
	ID() uint64
	Done()
	Fail(message string)
}

// CommandError is an error reply from the server, or a client failure
// when Code is -1.
type CommandError struct {
	Name    string `json:"error"`
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %d %s", e.Name, e.Code, e.Message)
}

// IsClientError reports whether the error was raised locally, for example
// because the connection closed before the response arrived.
func (e *CommandError) IsClientError() bool {
	return e.Code == clientErrorCode
}

// Command is the envelope shared by requests and responses.
type Command struct {
	*CommandError
	Id     uint64        `json:"id"`
	Name   string        `json:"command"`
	Type   string        `json:"type,omitempty"`
	Status string        `json:"status,omitempty"`
	Ready  chan struct{} `json:"-"`
}

func newCommand(command string) *Command {
	return &Command{
		Id:    atomic.AddUint64(&counter, 1),
		Name:  command,
		Ready: make(chan struct{}, 1),
	}
}

// ID returns the correlation id.
func (c *Command) ID() uint64 {
	return c.Id
}

// Done signals the response arrived.
func (c *Command) Done() {
	c.signal()
}

// Fail completes the command with a client error.
func (c *Command) Fail(message string) {
	c.CommandError = &CommandError{
		Name:    "Client Error",
		Code:    clientErrorCode,
		Message: message,
	}
	c.signal()
}

func (c *Command) signal() {
	select {
	case c.Ready <- struct{}{}:
	default:
	}
}

// RequestCommand is a request keyed by command name carrying free-form
// parameters; the result is kept raw until the caller decodes it.
type RequestCommand struct {
	*Command
	Params map[string]interface{} `json:"-"`
	Result json.RawMessage        `json:"result,omitempty"`
}

func newRequestCommand(command string, params map[string]interface{}) *RequestCommand {
	return &RequestCommand{
		Command: newCommand(command),
		Params:  params,
	}
}

// MarshalJSON flattens the parameters next to id and command.
func (c *RequestCommand) MarshalJSON() ([]byte, error) {
	msg := make(map[string]interface{}, len(c.Params)+2)
	for k, v := range c.Params {
		msg[k] = v
	}
	msg["id"] = c.Id
	msg["command"] = c.Name
	return json.Marshal(msg)
}

// UnmarshalJSON reads a response envelope.
func (c *RequestCommand) UnmarshalJSON(b []byte) error {
	var resp struct {
		*CommandError
		Type   string          `json:"type"`
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return err
	}
	c.Type = resp.Type
	c.Status = resp.Status
	c.Result = resp.Result
	if resp.CommandError != nil && resp.CommandError.Name != "" {
		c.CommandError = resp.CommandError
	} else if resp.Status == "error" {
		c.CommandError = &CommandError{Name: "unknownError", Message: string(b)}
	}
	return nil
}

// envelope is the common part of every inbound message.
type envelope struct {
	Id   uint64 `json:"id"`
	Type string `json:"type"`
}
