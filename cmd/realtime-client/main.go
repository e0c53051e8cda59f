// Interactive demo client for the realtime socket. Joins a channel,
// emits a paced stream of messages, and prints every server frame.
//
// Usage: go run ./cmd/realtime-client <channel> <token>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const emitsPerSecond = 2

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./cmd/realtime-client <channel> <token>")
		os.Exit(1)
	}

	channel := os.Args[1]
	token := os.Args[2]

	host := os.Getenv("WAVELINK_HOST")
	if host == "" {
		host = "localhost:8080"
	}

	u := url.URL{
		Scheme: "ws",
		Host:   host,
		Path:   "/realtime/socket",
	}

	fmt.Printf("Connecting to %s\n", u.String())

	header := map[string][]string{
		"Authorization": {"Bearer " + token},
	}

	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	// print every server frame
	go func() {
		defer close(done)

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}

			fmt.Printf("<- %s\n", message)
		}
	}()

	join := map[string]any{
		"op":      "channel_join",
		"id":      "join-1",
		"channel": channel,
	}
	if err := writeJSON(c, join); err != nil {
		log.Fatal("join:", err)
	}

	// pace emits so the demo never trips the per-connection emit budget
	limiter := rate.NewLimiter(rate.Limit(emitsPerSecond), 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		seq := 0

		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			seq++
			emit := map[string]any{
				"op":      "channel_emit",
				"id":      fmt.Sprintf("emit-%d", seq),
				"channel": channel,
				"event":   "demo.tick",
				"data":    map[string]any{"seq": seq, "sent_at": time.Now().Unix()},
			}

			if err := writeJSON(c, emit); err != nil {
				log.Println("emit:", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		fmt.Println("interrupted, closing")

		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.WriteMessage(websocket.CloseMessage, message); err != nil {
			return
		}

		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func writeJSON(c *websocket.Conn, frame map[string]any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	fmt.Printf("-> %s\n", payload)

	return c.WriteMessage(websocket.TextMessage, payload)
}
