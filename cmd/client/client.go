// Command client is a debug CLI against a running exchange: it places
// a single order over HTTP and prints the WebSocket trade feed as
// fills stream in. It exists for manual poking at a running server,
// the same role the teacher's TCP-protocol client plays against
// fenrir, retargeted to this exchange's JSON/WS surface.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

type orderRequest struct {
	JWT      string  `json:"jwt"`
	Type     string  `json:"type"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
	Leverage uint32  `json:"leverage"`
}

type orderResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type socketMessage struct {
	Event string `json:"event"`
	JWT   string `json:"jwt"`
}

func main() {
	addr := flag.String("server", "127.0.0.1:8000", "address of the exchange's HTTP listener")
	owner := flag.String("owner", "", "account identifier to submit as (compulsory)")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "order type: 'limit' or 'market'")
	price := flag.Float64("price", 100.0, "limit price (ignored for market orders)")
	amount := flag.Float64("amount", 1.0, "order quantity")
	leverage := flag.Uint("leverage", 1, "leverage")
	watch := flag.Bool("watch", true, "keep the connection open and print the trade feed")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		return
	}

	if *watch {
		go streamTrades(*addr, *owner)
	}

	if err := placeOrder(*addr, *owner, *typeStr, *sideStr, *price, *amount, uint32(*leverage)); err != nil {
		log.Fatalf("order failed: %v", err)
	}

	if *watch {
		fmt.Println("\nListening for trades... (Ctrl+C to exit)")
		select {}
	}
}

func placeOrder(addr, owner, typ, side string, price, amount float64, leverage uint32) error {
	body, err := json.Marshal(orderRequest{
		JWT: owner, Type: strings.ToLower(typ), Side: strings.ToLower(side),
		Price: price, Amount: amount, Leverage: leverage,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post("http://"+addr+"/order", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.Error != "" {
		return fmt.Errorf("%s", out.Error)
	}
	fmt.Println("->", out.Message)
	return nil
}

// streamTrades connects to the trade feed socket and prints every fill
// as it arrives, until the connection drops.
func streamTrades(addr, owner string) {
	url := "ws://" + addr + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Printf("failed to connect to trade feed: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(socketMessage{Event: "jwt", JWT: owner}); err != nil {
		log.Printf("failed to register with trade feed: %v", err)
		return
	}

	for {
		var trade map[string]any
		if err := conn.ReadJSON(&trade); err != nil {
			log.Printf("trade feed closed: %v", err)
			return
		}
		fmt.Printf("\n[TRADE] %v\n", trade)
	}
}
