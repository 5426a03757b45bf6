package types

import "time"

// PromptRequest is the inbound body of a prompt request from the browser client.
// Every field is optional; numeric fields are pointers so an absent value is
// omitted upstream instead of being sent as zero.
type PromptRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	MaxTokens    *int     `json:"maxTokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"topP,omitempty"`
	Version      string   `json:"version,omitempty"`
	Image        string   `json:"image,omitempty"`
	Audio        string   `json:"audio,omitempty"`

	// Internal tracking
	RequestID  string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

func (r *PromptRequest) HasImage() bool { return r.Image != "" }

func (r *PromptRequest) HasAudio() bool { return r.Audio != "" }
