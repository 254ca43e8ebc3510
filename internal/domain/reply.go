package domain

// Reply is what the engine answers for one inbound message.
type Reply struct {
	SessionID    string   `json:"session_id"`
	Messages     []string `json:"messages"`
	QuickReplies []string `json:"quick_replies,omitempty"`
	Reset        bool     `json:"reset,omitempty"`
	Intent       string   `json:"intent"`
}
