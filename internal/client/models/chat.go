package models

type MessageType string

const MessageTypeText MessageType = "TEXT"

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversationId"`
	SenderID       int64       `json:"senderId"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"messageType"`
	IsRead         bool        `json:"isRead"`
	CreatedAt      string      `json:"createdAt"`
}

type Conversation struct {
	ID          int64    `json:"id"`
	OtherUser   User     `json:"otherUser"`
	MatchID     *int64   `json:"matchId,omitempty"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

type SendMessageRequest struct {
	ConversationID int64       `json:"conversationId"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"messageType"`
}

// MessagePage is one page of a conversation's history.
type MessagePage struct {
	Content       []Message `json:"content"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int       `json:"totalElements"`
}
