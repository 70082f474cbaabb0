package tools

import (
	"context"

	"spendwise/internal/notify"
	"spendwise/internal/sandbox"
)

// sendAlertTool delivers one SMS through the notification gateway.
type sendAlertTool struct {
	guard  *sandbox.Guard
	sender notify.Sender
	domain string
	port   int
}

// NewSendAlert creates the send_alert tool. domain/port identify the
// gateway for the egress grant.
func NewSendAlert(guard *sandbox.Guard, sender notify.Sender, domain string, port int) Tool {
	return &sendAlertTool{guard: guard, sender: sender, domain: domain, port: port}
}

func (t *sendAlertTool) Name() string { return "send_alert" }

func (t *sendAlertTool) Description() string {
	return "Send an SMS alert to the account owner."
}

func (t *sendAlertTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Alert text, one short sentence.",
			},
		},
		"required": []string{"message"},
	}
}

func (t *sendAlertTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	message, err := stringArg(t.Name(), args, "message")
	if err != nil {
		return nil, err
	}
	if err := t.guard.Egress(t.domain, t.port); err != nil {
		return nil, err
	}
	if err := t.sender.Send(ctx, message); err != nil {
		return nil, err
	}
	return map[string]interface{}{"sent": true}, nil
}
