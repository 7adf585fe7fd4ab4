package messaging

import (
	"time"

	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

// Conversation is a direct conversation between two members. The pair is
// stored canonically, DirectUserAID being the smaller id, so each pair has at
// most one conversation.
type Conversation struct {
	tenantdb.Model
	DirectUserAID uuid.UUID  `json:"directUserAId" gorm:"column:direct_user_a_id;type:uuid;not null;index:idx_conversation_pair"`
	DirectUserBID uuid.UUID  `json:"directUserBId" gorm:"column:direct_user_b_id;type:uuid;not null;index:idx_conversation_pair"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty" gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Participant tracks a member's read position in a conversation.
type Participant struct {
	tenantdb.Model
	ConversationID uuid.UUID  `json:"conversationId" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	JoinedAt       time.Time  `json:"joinedAt" gorm:"not null"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`
}

func (Participant) TableName() string {
	return "conversation_participants"
}

// Message is one message of a conversation.
type Message struct {
	tenantdb.Model
	ConversationID uuid.UUID `json:"conversationId" gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID `json:"senderId" gorm:"type:uuid;not null"`
	BodyText       string    `json:"bodyText" gorm:"type:text;not null"`
	SentAt         time.Time `json:"sentAt" gorm:"not null;index"`
}

func (Message) TableName() string {
	return "messages"
}

// ConversationView is a conversation as listed for one participant.
type ConversationView struct {
	ID                 uuid.UUID   `json:"conversationId"`
	ParticipantIDs     []uuid.UUID `json:"participantUserIds"`
	LastMessagePreview *string     `json:"lastMessagePreview"`
	LastMessageAt      *time.Time  `json:"lastMessageAt"`
	UnreadCount        int         `json:"unreadCount"`
}

// MessageView is a message with its sender's name.
type MessageView struct {
	ID             uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderName     string    `json:"senderName"`
	BodyText       string    `json:"bodyText"`
	SentAt         time.Time `json:"sentAt"`
}

// Models lists the tables of this package for migration.
func Models() []any {
	return []any{&Conversation{}, &Participant{}, &Message{}}
}
