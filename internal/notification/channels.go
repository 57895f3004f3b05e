package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// UserSender pushes a message to every live connection of one user and
// reports how many connections received it
type UserSender interface {
	SendToUser(userID uuid.UUID, message []byte) int
}

// WebsocketChannel pushes events to connected browsers
type WebsocketChannel struct {
	hub UserSender
}

func NewWebsocketChannel(hub UserSender) *WebsocketChannel {
	return &WebsocketChannel{hub: hub}
}

func (c *WebsocketChannel) Name() string { return "websocket" }

// Send is a no-op for users without an open connection
func (c *WebsocketChannel) Send(_ context.Context, to Recipient, evt *Event) error {
	msg, err := json.Marshal(map[string]interface{}{
		"type":    evt.Type,
		"subject": evt.Subject(),
		"event":   evt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode websocket message: %w", err)
	}
	c.hub.SendToUser(to.UserID, msg)
	return nil
}

// MailSender is satisfied by *gomail.Dialer
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailConfig holds the SMTP settings for the email channel
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailChannel sends a short HTML mail per event
type EmailChannel struct {
	sender MailSender
	from   string
}

func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// NewEmailChannelWithSender is used when the transport is provided by the caller
func NewEmailChannelWithSender(sender MailSender, from string) *EmailChannel {
	return &EmailChannel{sender: sender, from: from}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, to Recipient, evt *Event) error {
	if to.Email == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf("<p>Hello %s,</p><p>%s.</p><p>Current stage: <b>%s</b>, status: <b>%s</b>.</p>",
		html.EscapeString(to.FullName), html.EscapeString(evt.Subject()), evt.Stage, evt.Status)
	if reason := evt.PayloadString("reason"); reason != "" {
		body += "<p>Reason: " + html.EscapeString(reason) + "</p>"
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to.Email)
	msg.SetHeader("Subject", evt.Subject())
	msg.SetBody("text/html", body)

	if err := c.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to.Email, err)
	}
	return nil
}

// LogChannel writes every delivery to the application log
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, to Recipient, evt *Event) error {
	c.logger.Info("Notification",
		zap.String("event_type", string(evt.Type)),
		zap.String("event_id", evt.ID),
		zap.String("request_id", evt.RequestID.String()),
		zap.String("user_id", to.UserID.String()),
		zap.String("stage", string(evt.Stage)),
		zap.String("status", string(evt.Status)))
	return nil
}
