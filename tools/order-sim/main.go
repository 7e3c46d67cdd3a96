// order-sim places a test order and follows it through the saga by polling
// the status view until a terminal state or the deadline.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		orderURL = flag.String("order-url", getenv("ORDER_URL", "http://localhost:8080"), "order service base url")
		viewsURL = flag.String("views-url", getenv("VIEWS_URL", "http://localhost:8084"), "order views base url")
		userID   = flag.String("user-id", getenv("USER_ID", "user-sim"), "user placing the order")
		sku      = flag.String("sku", getenv("SKU", "SKU1"), "sku to order")
		qty      = flag.Int("qty", 2, "quantity to order")
		price    = flag.Float64("price", 24.99, "unit price")
		timeout  = flag.Duration("timeout", 2*time.Minute, "how long to wait for a terminal status")
	)
	flag.Parse()

	orderID, err := placeOrder(*orderURL, *userID, *sku, *qty, *price)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("order placed: %s\n", orderID)

	deadline := time.Now().Add(*timeout)
	last := ""
	for time.Now().Before(deadline) {
		status, err := fetchStatus(*viewsURL, orderID)
		if err != nil {
			fmt.Printf("status poll: %v\n", err)
		} else if status != last {
			fmt.Printf("status: %s\n", status)
			last = status
		}
		if isTerminal(last) {
			return
		}
		time.Sleep(2 * time.Second)
	}
	fatal(fmt.Sprintf("order %s did not reach a terminal status within %s (last: %s)", orderID, *timeout, last))
}

func placeOrder(baseURL, userID, sku string, qty int, price float64) (string, error) {
	body, err := json.Marshal(map[string]any{
		"user_id": userID,
		"items": []map[string]any{
			{"sku": sku, "qty": qty, "price": price},
		},
	})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(strings.TrimRight(baseURL, "/")+"/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("create order: status %d", resp.StatusCode)
	}
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.OrderID == "" {
		return "", fmt.Errorf("create order: empty order id in response")
	}
	return out.OrderID, nil
}

func fetchStatus(baseURL, orderID string) (string, error) {
	resp, err := http.Get(strings.TrimRight(baseURL, "/") + "/orders/" + orderID + "/status")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "PENDING", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func isTerminal(status string) bool {
	switch status {
	case "SHIPPING_SCHEDULED", "PAYMENT_FAILED", "INVENTORY_REJECTED", "COMPLETED", "CANCELLED":
		return true
	}
	return false
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
