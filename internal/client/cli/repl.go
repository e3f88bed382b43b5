package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Validate(ctx context.Context) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Sports(ctx context.Context) error
	Browse(ctx context.Context, args []string) error
	More(ctx context.Context) error
	Like(ctx context.Context, args []string) error
	Pass(ctx context.Context, args []string) error
	Matches(ctx context.Context) error
	Chats(ctx context.Context) error
	History(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Join(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the SportMatch CLI.
//
// It reads a line from reader, parses the first token as the command and
// the rest as its arguments, and dispatches to methods on 'a'. Commands that
// prompt for more input (login, register) read from the same reader. The
// loop exits on EOF, when ctx is done, or when the user types "exit" or
// "quit".
//
// Prompt & Commands
//
//	Not logged in:
//	  - help                       show available commands
//	  - register | login           start a session
//	  - exit | quit                leave the program
//
//	Logged in:
//	  - status | validate          inspect the session
//	  - connect | disconnect       control the realtime connection
//	  - sports                     list sports
//	  - browse <sport> [lat lon]   load candidates
//	  - more                       next page of candidates
//	  - like <id> | pass <id>      decide on a candidate
//	  - matches                    list matches
//	  - chats                      list conversations
//	  - history <conv> [page]      show messages
//	  - send <conv> <text>         send a message
//	  - join <conv>                join a conversation
//	  - logout
//
// Any errors returned by command handlers are ignored here; handlers
// report their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("sm %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() && needsSession(cmd) {
			printlnFn("Please log in first.")
			continue
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: status, validate, connect, disconnect, sports, browse, more, like, pass, matches, chats, history, send, join, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)
		case "login":
			_ = a.Login(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "status":
			_ = a.Status(ctx)
		case "validate":
			_ = a.Validate(ctx)
		case "connect":
			_ = a.Connect(ctx)
		case "disconnect":
			_ = a.Disconnect(ctx)
		case "sports":
			_ = a.Sports(ctx)
		case "browse":
			_ = a.Browse(ctx, args)
		case "more":
			_ = a.More(ctx)
		case "like":
			_ = a.Like(ctx, args)
		case "pass":
			_ = a.Pass(ctx, args)
		case "matches":
			_ = a.Matches(ctx)
		case "chats":
			_ = a.Chats(ctx)
		case "history":
			_ = a.History(ctx, args)
		case "send":
			_ = a.Send(ctx, args)
		case "join":
			_ = a.Join(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

func needsSession(cmd string) bool {
	switch cmd {
	case "help", "register", "login", "exit", "quit":
		return false
	}
	return true
}
