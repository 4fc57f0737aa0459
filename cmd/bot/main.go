package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"tileworld.ai/internal/protocol"
)

// A wandering probe client: joins a room over HTTP, walks to random
// tiles, chats occasionally and tails the event stream via long-poll.
func main() {
	var (
		base   = flag.String("url", "http://localhost:8080", "server base url")
		roomID = flag.String("room", "default", "room id")
		name   = flag.String("name", "bot", "actor name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	client := &http.Client{Timeout: 30 * time.Second}

	joined, err := join(client, *base, *roomID, *name)
	if err != nil {
		logger.Fatalf("join: %v", err)
	}
	logger.Printf("joined room=%s actor=%s map=%s %dx%d",
		joined.RoomID, joined.ActorID, joined.Params.MapName, joined.Params.Width, joined.Params.Height)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	cursor := joined.Cursor
	moveTick := time.NewTicker(8 * time.Second)
	defer moveTick.Stop()
	sayTick := time.NewTicker(25 * time.Second)
	defer sayTick.Stop()

	seq := 0
	nextID := func(kind string) string {
		seq++
		return fmt.Sprintf("%s-%s-%d", kind, joined.ActorID, seq)
	}

	for {
		select {
		case <-stop:
			_, _ = post[any](client, fmt.Sprintf("%s/v1/rooms/%s/actors/%s/leave", *base, joined.RoomID, joined.ActorID), struct{}{})
			return

		case <-moveTick.C:
			to := [2]int{r.Intn(joined.Params.Width), r.Intn(joined.Params.Height)}
			res, err := post[protocol.MoveResult](client,
				fmt.Sprintf("%s/v1/rooms/%s/actors/%s/move", *base, joined.RoomID, joined.ActorID),
				protocol.MoveRequest{RequestID: nextID("move"), To: to})
			if err != nil {
				logger.Printf("move: %v", err)
				continue
			}
			logger.Printf("move to %v: %s %s", to, res.Outcome, res.Reason)

		case <-sayTick.C:
			_, err := post[protocol.SayResult](client,
				fmt.Sprintf("%s/v1/rooms/%s/actors/%s/say", *base, joined.RoomID, joined.ActorID),
				protocol.SayRequest{RequestID: nextID("say"), Text: "still wandering"})
			if err != nil {
				logger.Printf("say: %v", err)
			}

		default:
			res, err := getEvents(client, *base, joined.RoomID, cursor)
			if err != nil {
				logger.Printf("events: %v", err)
				time.Sleep(time.Second)
				continue
			}
			for _, e := range res.Events {
				logger.Printf("event cursor=%d type=%s payload=%v", e.Cursor, e.Type, e.Payload)
			}
			cursor = res.NextCursor
		}
	}
}

func join(client *http.Client, base, roomID, name string) (protocol.JoinResult, error) {
	return post[protocol.JoinResult](client,
		fmt.Sprintf("%s/v1/rooms/%s/join", base, roomID),
		protocol.JoinRequest{
			RequestID: fmt.Sprintf("join-%s-%d", name, time.Now().UnixNano()),
			Name:      name,
			Kind:      "agent",
		})
}

func getEvents(client *http.Client, base, roomID string, cursor uint64) (protocol.EventsResult, error) {
	var out protocol.EventsResult
	url := fmt.Sprintf("%s/v1/rooms/%s/events?cursor=%d&wait_ms=5000", base, roomID, cursor)
	resp, err := client.Get(url)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, decodeError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

func post[T any](client *http.Client, url string, body any) (T, error) {
	var out T
	b, err := json.Marshal(body)
	if err != nil {
		return out, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, decodeError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

func decodeError(resp *http.Response) error {
	var eb protocol.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return fmt.Errorf("http %d: %s %s", resp.StatusCode, eb.Code, eb.Message)
}
