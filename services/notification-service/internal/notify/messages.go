// Package notify formats order lifecycle emails.
package notify

import (
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

type Message struct {
	Subject string
	Body    string
}

func OrderCompletedMessage(evt events.OrderCompleted) Message {
	return Message{
		Subject: fmt.Sprintf("Order %s completed", evt.OrderID),
		Body: fmt.Sprintf(
			"Order %s has been completed and is on its way.\nCompleted at: %s\n",
			evt.OrderID, evt.CompletedAt),
	}
}

func OrderCancelledMessage(evt events.OrderCancelled) Message {
	reason := strings.TrimSpace(evt.Reason)
	if reason == "" {
		reason = "not specified"
	}
	return Message{
		Subject: fmt.Sprintf("Order %s cancelled", evt.OrderID),
		Body: fmt.Sprintf(
			"Order %s has been cancelled.\nReason: %s\nCancelled at: %s\n",
			evt.OrderID, reason, evt.CancelledAt),
	}
}
