package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Chat roles used by the consequence engine
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single conversation turn. String content is decoded into
// Content; any other content form (parts array, null) is kept in RawContent.
// Fields besides role and content are carried in Extra.
type ChatMessage struct {
	Role       string
	Content    string
	RawContent json.RawMessage
	Extra      map[string]json.RawMessage
}

// UnmarshalJSON decodes role and content and keeps every other field verbatim
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = ChatMessage{}
	if v, ok := raw["role"]; ok {
		if err := json.Unmarshal(v, &m.Role); err != nil {
			return fmt.Errorf("decode role: %w", err)
		}
		delete(raw, "role")
	}
	if v, ok := raw["content"]; ok {
		if t := bytes.TrimSpace(v); len(t) > 0 && t[0] == '"' {
			if err := json.Unmarshal(t, &m.Content); err != nil {
				return fmt.Errorf("decode content: %w", err)
			}
		} else {
			m.RawContent = append(json.RawMessage(nil), v...)
		}
		delete(raw, "content")
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// MarshalJSON writes role, content and the preserved extra fields
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["role"] = m.Role
	if m.RawContent != nil {
		out["content"] = m.RawContent
	} else {
		out["content"] = m.Content
	}
	return json.Marshal(out)
}

// ChatRequest is an outbound chat completion request. Fields other than model
// and messages are carried in Extra and written back unchanged.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Extra    map[string]json.RawMessage
}

// UnmarshalJSON decodes model and messages and keeps every other field verbatim
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = ChatRequest{}
	if v, ok := raw["model"]; ok {
		if err := json.Unmarshal(v, &r.Model); err != nil {
			return fmt.Errorf("decode model: %w", err)
		}
		delete(raw, "model")
	}
	if v, ok := raw["messages"]; ok {
		if err := json.Unmarshal(v, &r.Messages); err != nil {
			return fmt.Errorf("decode messages: %w", err)
		}
		delete(raw, "messages")
	}
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON writes model, messages and the preserved extra fields
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["model"] = r.Model
	messages := r.Messages
	if messages == nil {
		messages = []ChatMessage{}
	}
	out["messages"] = messages
	return json.Marshal(out)
}

// Clone returns a copy whose messages can be modified independently
func (r ChatRequest) Clone() ChatRequest {
	out := ChatRequest{Model: r.Model}
	if r.Messages != nil {
		out.Messages = append([]ChatMessage(nil), r.Messages...)
	}
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
