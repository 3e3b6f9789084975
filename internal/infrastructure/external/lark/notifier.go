package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
)

// receiveIDTypeEmail addresses a Lark user by the email on their account
const receiveIDTypeEmail = "email"

// Notifier implements port.Notifier with Lark rich text messages
type Notifier struct {
	client *Client
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(client *Client, logger *zap.Logger) *Notifier {
	return &Notifier{
		client: client,
		logger: logger,
	}
}

// Notify sends n to the Lark user registered with n.Recipient
func (n *Notifier) Notify(ctx context.Context, msg port.Notification) error {
	if msg.Recipient == "" {
		return fmt.Errorf("recipient cannot be empty")
	}

	content, err := postContent(msg.Title, msg.Body)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeEmail).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.Recipient).
			MsgType("post").
			Content(content).
			Build()).
		Build()

	resp, err := n.client.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("request_id", msg.RequestID),
			zap.String("recipient", msg.Recipient),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("request_id", msg.RequestID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent successfully",
		zap.String("request_id", msg.RequestID),
		zap.String("message_id", messageID))
	return nil
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent builds a post message with one paragraph per body line
func postContent(title, body string) (string, error) {
	post := postBody{Title: title}
	for _, line := range strings.Split(body, "\n") {
		post.Content = append(post.Content, []postElement{{Tag: "text", Text: line}})
	}

	b, err := json.Marshal(map[string]postBody{"en_us": post})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message content: %w", err)
	}
	return string(b), nil
}

// LogNotifier writes notifications to the log when Lark is disabled
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(ctx context.Context, msg port.Notification) error {
	n.logger.Info("Notification (lark disabled)",
		zap.String("request_id", msg.RequestID),
		zap.String("recipient", msg.Recipient),
		zap.String("title", msg.Title))
	return nil
}

// Verify interface compliance
var (
	_ port.Notifier = (*Notifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)
