// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS and subscribe to all plan events first
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plans/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]any{"planId": "all"})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger a plan.computed event with a tiny inline problem
	time.Sleep(500 * time.Millisecond)
	body := []byte(`{
		"warehouses":[{"id":"w1","parishId":"kingston","lat":17.98,"lng":-76.80,"inventory":[{"itemCode":"water","quantity":100}]}],
		"communities":[{"id":"c1","parishId":"kingston","lat":17.99,"lng":-76.79}],
		"communityNeeds":[{"communityId":"c1","itemCode":"water","quantity":40,"priority":1}],
		"constraints":{"reserveFraction":0.2,"maxDistanceKm":50,"distanceWeight":1,"riskWeight":1,"fairnessWeight":1}
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var planResp struct {
		PlanID string `json:"planId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&planResp); err != nil {
		log.Fatal(err)
	}
	log.Printf("Plan ID: %s", planResp.PlanID)

	// Wait briefly to receive the event
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
