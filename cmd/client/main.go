// Command client is a terminal chat client for the secure chat server. It
// polls one conversation for new messages and sends lines typed on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"securechat/internal/client"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base URL")
	userID := flag.String("user", "", "user id to send as")
	conversationID := flag.String("conversation", "", "conversation id to open")
	flag.Parse()

	if *userID == "" || *conversationID == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.NewAPIClient(*serverURL, *userID)
	view := client.NewConversationView(api, *conversationID, *userID)
	view.StartPolling(ctx)
	defer view.StopPolling()

	go printLoop(ctx, view)

	fmt.Printf("Connected to %s as %s. Type a message and press enter.\n", *conversationID, *userID)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			return
		}
		if _, err := view.Send(ctx, text, ""); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}

// printLoop renders newly timeline-confirmed messages as they arrive.
func printLoop(ctx context.Context, view *client.ConversationView) {
	printed := make(map[string]bool)
	lastDate := ""

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for _, item := range view.Timeline().Render() {
			if item.DateSeparator != "" {
				continue
			}
			msg := item.Message
			if printed[msg.ID] || msg.Pending {
				continue
			}
			printed[msg.ID] = true

			if day := msg.CreatedAt.Local().Format("2006-01-02"); day != lastDate {
				lastDate = day
				fmt.Printf("--- %s ---\n", day)
			}

			name := msg.SenderName
			if name == "" {
				name = msg.SenderID
			}
			if item.Grouped {
				fmt.Printf("    %s\n", msg.Text)
			} else {
				fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), name, msg.Text)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
