package events

import "encoding/json"

// OutboundType enumerates the commands a client may send on the stream.
type OutboundType string

const (
	OutboundUserMessage OutboundType = "user_message"
	OutboundStop        OutboundType = "stop"
	OutboundEndSession  OutboundType = "end_session"
)

// Outbound is a client-to-server stream command.
type Outbound struct {
	Type    OutboundType `json:"type"`
	Content string       `json:"content,omitempty"`
}

func UserMessage(content string) Outbound {
	return Outbound{Type: OutboundUserMessage, Content: content}
}

func Stop() Outbound {
	return Outbound{Type: OutboundStop}
}

func EndSession() Outbound {
	return Outbound{Type: OutboundEndSession}
}

func (o Outbound) Marshal() ([]byte, error) {
	return json.Marshal(o)
}
