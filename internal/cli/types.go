package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeTUI         Mode = "tui"
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID           string    `json:"id"`
	CallID       string    `json:"call_id"`
	SenderID     string    `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
	Body         string    `json:"body"`
	SentAt       time.Time `json:"sent_at"`
	IsFromMe     bool      `json:"is_from_me"`
}

// CallStatus represents the call and chat panel status for responses
type CallStatus struct {
	CallID    string `json:"call_id,omitempty"`
	InCall    bool   `json:"in_call"`
	Muted     bool   `json:"muted"`
	PanelOpen bool   `json:"panel_open"`
	PiP       string `json:"pip"`
	Unread    int    `json:"unread"`
	Badge     string `json:"badge,omitempty"`
	Status    string `json:"status"`
}

// UnreadInfo represents the unread state of the current call
type UnreadInfo struct {
	CallID      string `json:"call_id,omitempty"`
	UnreadCount int    `json:"unread_count"`
	HasUnread   bool   `json:"has_unread"`
	Badge       string `json:"badge,omitempty"`
}

// PiPInfo represents the picture-in-picture window state
type PiPInfo struct {
	State   string `json:"state"`
	URL     string `json:"url,omitempty"`
	Surface string `json:"surface"`
}
