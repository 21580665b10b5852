// Package domain contains core business types and interfaces.
//
// This file defines the model classes a user can route requests to and the
// upstream model names they map to.
package domain

// Model identifies one of the model classes the bot can route a request to.
type Model string

const (
	ModelChatMini      Model = "chat-mini"     // lightweight chat completion
	ModelChatFull      Model = "chat-full"     // full chat completion
	ModelImage         Model = "image"         // image generation
	ModelTranscription Model = "transcription" // audio transcription
)

// Models lists every model class in display order.
var Models = []Model{ModelChatMini, ModelChatFull, ModelImage, ModelTranscription}

// upstreamNames maps model classes to the provider-side model identifiers.
var upstreamNames = map[Model]string{
	ModelChatMini:      "gpt-4o-mini",
	ModelChatFull:      "gpt-4o",
	ModelImage:         "dall-e-3",
	ModelTranscription: "whisper-1",
}

// UpstreamName returns the provider-side model identifier for a model class.
func (m Model) UpstreamName() string {
	return upstreamNames[m]
}

// ModelFromUpstreamName resolves a provider-side model identifier back to a
// model class. Returns false for unknown names.
func ModelFromUpstreamName(name string) (Model, bool) {
	for m, n := range upstreamNames {
		if n == name {
			return m, true
		}
	}
	return "", false
}

// Valid checks if the model class is one of the known classes.
func (m Model) Valid() bool {
	switch m {
	case ModelChatMini, ModelChatFull, ModelImage, ModelTranscription:
		return true
	default:
		return false
	}
}

// IsChat returns true for the model classes that carry conversation history.
func (m Model) IsChat() bool {
	return m == ModelChatMini || m == ModelChatFull
}

// Role tags a conversation message with its author.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Message is a single role-tagged turn in a chat session. ImageURL is set
// when the user attached a photo; Text then carries the caption.
type Message struct {
	Role     Role
	Text     string
	ImageURL string
}
