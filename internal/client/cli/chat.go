package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
)

func (a *App) Chats(ctx context.Context) error {
	convs, err := a.chat.Conversations(ctx)
	if err != nil {
		a.printf("Could not load conversations: %s\n", describe(err))
		return err
	}
	if len(convs) == 0 {
		a.println("No conversations.")
		return nil
	}
	for _, c := range convs {
		last := ""
		if c.LastMessage != nil {
			last = c.LastMessage.Content
		}
		a.printf("%4d  %-20s unread %-3d %s\n", c.ID, c.OtherUser.DisplayName(), c.UnreadCount, last)
	}
	return nil
}

// History prints one page of a conversation:
//
//	history <conversationID> [page]
func (a *App) History(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		a.println("Usage: history <conversationID> [page]")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.println("Usage: history <conversationID> [page]")
		return nil
	}
	page := 0
	if len(args) == 2 {
		if page, err = strconv.Atoi(args[1]); err != nil {
			a.println("Usage: history <conversationID> [page]")
			return nil
		}
	}

	p, err := a.chat.History(ctx, id, page, 0)
	if err != nil {
		a.printf("Could not load messages: %s\n", describe(err))
		return err
	}
	for _, m := range p.Content {
		a.printf("[%s] %d: %s\n", m.CreatedAt, m.SenderID, m.Content)
	}
	if p.TotalPages > page+1 {
		a.printf("(page %d of %d)\n", page+1, p.TotalPages)
	}
	return nil
}

// Send posts a message:
//
//	send <conversationID> <text...>
func (a *App) Send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		a.println("Usage: send <conversationID> <text>")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.println("Usage: send <conversationID> <text>")
		return nil
	}

	msg, err := a.chat.Send(ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		a.printf("Message not sent: %s\n", describe(err))
		return err
	}
	if msg != nil {
		a.println("Sent.")
	}
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: join <conversationID>")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.println("Usage: join <conversationID>")
		return nil
	}
	if err := a.chat.Join(ctx, id); err != nil {
		if errors.Is(err, realtime.ErrNotConnected) {
			a.println("Realtime is not connected. Type 'connect' first.")
		} else {
			a.printf("Join failed: %s\n", describe(err))
		}
		return err
	}
	a.printf("Joined conversation %d.\n", id)
	return nil
}
