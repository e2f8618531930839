package models

import "time"

// SessionType categorises a conversation.
type SessionType string

const SessionDoctor SessionType = "DOCTOR"

// SenderType identifies who wrote a message.
type SenderType string

const (
	SenderUser SenderType = "USER"
	SenderAI   SenderType = "AI"
)

// IDs are snowflakes and are rendered as JSON strings so browsers keep full
// precision.
//
// Conversation belongs to exactly one user and owns its messages; deleting a
// conversation deletes them. Messages are stored separately and reference the
// conversation by ID only.
type Conversation struct {
	ID          int64       `bson:"_id" json:"conversationId,string"`
	UserID      int64       `bson:"userId" json:"userId,string"`
	Name        string      `bson:"name" json:"name"`
	SessionType SessionType `bson:"sessionType" json:"sessionType"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
}

// Message is written once per send event and never mutated.
type Message struct {
	ID             int64      `bson:"_id" json:"messageId,string"`
	ConversationID int64      `bson:"conversationId" json:"conversationId,string"`
	Content        string     `bson:"content" json:"content"`
	SenderType     SenderType `bson:"senderType" json:"senderType"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
}
