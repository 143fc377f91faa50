// Command posewatch tails a running session's state feed and prints
// one line per snapshot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/state", "state feed URL")
	flag.Parse()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(*url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
	}()

	fmt.Printf("watching %s\n", *url)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var snap struct {
			State string `json:"state"`
			Axes  struct {
				Pitch float64 `json:"pitch"`
				Roll  float64 `json:"roll"`
				Yaw   float64 `json:"yaw"`
			} `json:"axes"`
			Height float64 `json:"height"`
			Gaze   struct {
				Label string `json:"label"`
			} `json:"gaze"`
			FPS  float64 `json:"fps"`
			Sent bool    `json:"sent"`
		}
		if err := json.Unmarshal(msg, &snap); err != nil {
			continue
		}

		sent := " "
		if snap.Sent {
			sent = "*"
		}
		fmt.Printf("%s %-12s pitch=%6.1f roll=%6.1f yaw=%6.1f h=%5.1f gaze=%-6s fps=%5.1f\n",
			sent, snap.State, snap.Axes.Pitch, snap.Axes.Roll, snap.Axes.Yaw,
			snap.Height, snap.Gaze.Label, snap.FPS)
	}
}
