package model

// InboundPayload is the already-extracted provider webhook field map.
type InboundPayload struct {
	MessageSid        string
	From              string
	To                string
	Body              string
	NumMedia          string
	MediaURL0         string
	MediaContentType0 string
}

// Envelope is a channel-agnostic inbound message.
type Envelope struct {
	Channel           ChannelType
	FromAddress       string
	ToAddress         string
	Body              string
	MediaURL          *string
	MediaContentType  *string
	ProviderMessageID string
}

// IngestResult is the outcome of a successful ingestion.
type IngestResult struct {
	Team                *Team         `json:"team"`
	Contact             *Contact      `json:"contact"`
	Conversation        *Conversation `json:"conversation"`
	Message             *Message      `json:"message"`
	ContactCreated      bool          `json:"contact_created"`
	ConversationCreated bool          `json:"conversation_created"`
	Duplicate           bool          `json:"duplicate,omitempty"`
}
