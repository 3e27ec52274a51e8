package model

// Message is a single generation-collaborator message. The content is
// opaque to the pipeline, it only preserves and replays it.
type Message struct {
	Role    string
	Content string
}

// Conversation is the ordered message history of one task across rounds.
type Conversation struct {
	TaskID   string
	Messages []Message
}
