// Command client is a minimal exchange client used to exercise the
// session front-end by hand: register, check balance, and submit
// orders.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
)

type request struct {
	ReqType  int
	Username string `json:",omitempty"`
	SymbolId uint64 `json:",omitempty"`
	Type     string `json:",omitempty"`
	Price    uint64 `json:",omitempty"`
	Quantity uint64 `json:",omitempty"`
}

const (
	reqRegistration = 0
	reqViewBalance  = 1
	reqAddOrder     = 2
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:5555", "Address of the exchange server")
	action := flag.String("action", "register", "Action to perform: register, balance, order")
	username := flag.String("username", "", "Username to register (required for 'register')")
	symbolID := flag.Uint64("symbol", 1, "Symbol id for 'order'")
	side := flag.String("side", "Buy", "Order side for 'order': Buy or Sell")
	price := flag.Uint64("price", 100, "Order price for 'order'")
	quantity := flag.Uint64("qty", 10, "Order quantity for 'order'")
	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	var req request
	switch *action {
	case "register":
		if *username == "" {
			fmt.Println("Error: -username is required for 'register'.")
			os.Exit(1)
		}
		req = request{ReqType: reqRegistration, Username: *username}
	case "balance":
		req = request{ReqType: reqViewBalance}
	case "order":
		req = request{ReqType: reqAddOrder, SymbolId: *symbolID, Type: *side, Price: *price, Quantity: *quantity}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("failed to encode request: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		log.Fatalf("failed to send request: %v", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		log.Fatalf("failed to read reply: %v", err)
	}
	fmt.Print(reply)
}
