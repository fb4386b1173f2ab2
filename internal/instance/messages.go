// pattern: Functional Core

package instance

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// MessageType classifies protocol messages exchanged with the assistant.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
	MessageResult    MessageType = "result"
)

// Message is the line-delimited JSON envelope spoken over instance stdio.
// Payload carries the type-specific body untouched.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UserMessage builds a user message carrying plain text.
func UserMessage(text string) Message {
	payload, _ := json.Marshal(map[string]string{"text": text})
	return Message{Type: MessageUser, Payload: payload}
}

// Event is one unit of instance output: either a decoded protocol message or
// a raw line that did not parse as one. Exactly one field is set.
type Event struct {
	Message *Message
	Raw     string
}

// ParseLine decodes one output line as a protocol message. Lines that are
// not JSON objects with a recognized type field are not messages; assistants
// interleave free-form output with the protocol and both must survive.
func ParseLine(line string) (*Message, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return nil, false
	}
	switch msg.Type {
	case MessageUser, MessageAssistant, MessageSystem, MessageResult:
		return &msg, true
	default:
		return nil, false
	}
}

// readLoop splits the output stream into lines and forwards each as an
// Event. The reader accumulates until a newline arrives, so a line of any
// length is delivered whole and never aborts the stream. Sends block until
// the consumer receives, so a slow consumer backpressures the child through
// the pipe. The channel closes on EOF, after a trailing unterminated line
// has been emitted.
func (i *Instance) readLoop(r io.Reader, events chan<- Event) {
	defer close(events)
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if err == nil || line != "" {
			if msg, ok := ParseLine(line); ok {
				events <- Event{Message: msg}
			} else {
				events <- Event{Raw: line}
			}
		}
		if err != nil {
			if err != io.EOF {
				i.log.Debug("output stream closed", "id", i.id, "error", err)
			}
			return
		}
	}
}
