package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jyoon-dev/ssak3/internal/api"
	"github.com/jyoon-dev/ssak3/internal/session"
	"github.com/jyoon-dev/ssak3/internal/tui/client"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(session.SocketPath(sessionName))
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "login-url":
		cmdLoginURL(ctx, c)
	case "login":
		requireArgs(args, 2, "ssakctl login <code>")
		cmdLogin(ctx, c, args[1])
	case "logout":
		cmdLogout(ctx, c)
	case "rooms":
		cmdRooms(ctx, c, *jsonFlag)
	case "open":
		requireArgs(args, 2, "ssakctl open <product-id>")
		cmdOpen(ctx, c, parseID(args[1]))
	case "leave":
		requireArgs(args, 2, "ssakctl leave <room-id>")
		cmdLeave(ctx, c, parseID(args[1]))
	case "history":
		requireArgs(args, 2, "ssakctl history <room-id>")
		cmdHistory(ctx, c, parseID(args[1]), *jsonFlag)
	case "send":
		requireArgs(args, 3, "ssakctl send <room-id> <text>")
		cmdSend(ctx, c, parseID(args[1]), args[2])
	case "send-media":
		requireArgs(args, 3, "ssakctl send-media <room-id> <path> [kind]")
		kind := "image"
		if len(args) > 3 {
			kind = args[3]
		}
		cmdSendMedia(ctx, c, parseID(args[1]), args[2], kind)
	case "read":
		requireArgs(args, 2, "ssakctl read <room-id>")
		cmdRead(ctx, c, parseID(args[1]))
	case "focus":
		cmdFocus(ctx, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: ssakctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                        Show daemon status")
	fmt.Fprintln(os.Stderr, "  login-url                     Print Kakao authorize URL")
	fmt.Fprintln(os.Stderr, "  login <code>                  Exchange OAuth code for a session")
	fmt.Fprintln(os.Stderr, "  logout                        Tear the session down")
	fmt.Fprintln(os.Stderr, "  rooms                         List chat rooms")
	fmt.Fprintln(os.Stderr, "  open <product-id>             Open a room for a product")
	fmt.Fprintln(os.Stderr, "  leave <room-id>               Leave a room")
	fmt.Fprintln(os.Stderr, "  history <room-id>             Show room history")
	fmt.Fprintln(os.Stderr, "  send <room-id> <text>         Send a text message")
	fmt.Fprintln(os.Stderr, "  send-media <room-id> <path>   Send a local file")
	fmt.Fprintln(os.Stderr, "  read <room-id>                Mark a room as read")
	fmt.Fprintln(os.Stderr, "  focus                         Nudge the daemon to re-poll")
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage: "+usage)
		os.Exit(1)
	}
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "error: invalid id %q\n", s)
		os.Exit(1)
	}
	return id
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Session: %s\n", resp.Session)
	fmt.Printf("State:   %s\n", resp.State)
	if resp.LoggedIn {
		fmt.Printf("User:    %s (local=%d kakao=%d)\n", resp.Nickname, resp.LocalID, resp.ForeignID)
	} else {
		fmt.Println("User:    (not logged in)")
	}
	fmt.Printf("Rooms:   %d\n", resp.RoomCount)
	fmt.Printf("Unread:  %d\n", resp.UnreadTotal)
}

func cmdLoginURL(ctx context.Context, c *client.Client) {
	url, err := c.AuthURL(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Println(url)
}

func cmdLogin(ctx context.Context, c *client.Client, code string) {
	resp, err := c.Login(ctx, code)
	if err != nil {
		fail(err)
	}
	fmt.Printf("logged in as %s\n", resp.Nickname)
}

func cmdLogout(ctx context.Context, c *client.Client) {
	if err := c.Logout(ctx); err != nil {
		fail(err)
	}
	fmt.Println("logged out")
}

func cmdRooms(ctx context.Context, c *client.Client, jsonOut bool) {
	rooms, err := c.Rooms(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(rooms)
		return
	}
	for _, r := range rooms {
		unread := ""
		if r.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d)", r.UnreadCount)
		}
		fmt.Printf("%8d  %-12s %-20s %s%s\n", r.ID, r.PeerName, r.ProductTitle, r.LastMessage, unread)
	}
}

func cmdOpen(ctx context.Context, c *client.Client, productID int64) {
	roomID, err := c.CreateRoom(ctx, productID)
	if err != nil {
		fail(err)
	}
	fmt.Printf("room %d\n", roomID)
}

func cmdLeave(ctx context.Context, c *client.Client, roomID int64) {
	if err := c.LeaveRoom(ctx, roomID); err != nil {
		fail(err)
	}
	fmt.Println("left")
}

func cmdHistory(ctx context.Context, c *client.Client, roomID int64, jsonOut bool) {
	thread, err := c.Messages(ctx, roomID)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(thread)
		return
	}
	fmt.Printf("%s · %s\n", thread.PeerName, thread.ProductName)
	// Confirmed rows arrive newest first; print oldest first, in-flight last.
	for i := len(thread.Entries) - 1; i >= 0; i-- {
		if e := thread.Entries[i]; !e.Pending {
			printEntry(thread.PeerName, e)
		}
	}
	for _, e := range thread.Entries {
		if e.Pending {
			printEntry(thread.PeerName, e)
		}
	}
}

func printEntry(peer string, e api.EntryResponse) {
	who := peer
	if e.Mine {
		who = "me"
	}
	mark := ""
	if e.Pending {
		mark = " *"
	}
	fmt.Printf("[%s]%s %s\n", who, mark, e.Content)
}

func cmdSend(ctx context.Context, c *client.Client, roomID int64, text string) {
	tempID, err := c.SendText(ctx, roomID, text)
	if err != nil {
		fail(err)
	}
	fmt.Printf("queued %s\n", tempID)
}

func cmdSendMedia(ctx context.Context, c *client.Client, roomID int64, path, kind string) {
	tempID, err := c.SendMedia(ctx, roomID, path, kind)
	if err != nil {
		fail(err)
	}
	fmt.Printf("queued %s\n", tempID)
}

func cmdRead(ctx context.Context, c *client.Client, roomID int64) {
	if err := c.MarkRead(ctx, roomID); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func cmdFocus(ctx context.Context, c *client.Client) {
	if err := c.Focus(ctx); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}
