package realtime

import "fmt"

// Application destinations accepted by the server.
const (
	DestinationChatSend = "/app/chat.send"
	DestinationChatJoin = "/app/chat.join"
)

// MessagesTopic carries chat messages addressed to userID.
func MessagesTopic(userID int64) string {
	return fmt.Sprintf("/user/%d/queue/messages", userID)
}

// MatchesTopic carries match-found notifications for userID.
func MatchesTopic(userID int64) string {
	return fmt.Sprintf("/user/%d/queue/matches", userID)
}
