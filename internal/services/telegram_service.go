package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramBaseURL = "https://api.telegram.org"

// TelegramService posts operational notifications to an admin chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	client      *resty.Client
}

// NewTelegramService creates a new TelegramService. Empty credentials turn
// every send into a no-op.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	client := resty.New().
		SetBaseURL(telegramBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	return &TelegramService{botToken: botToken, adminChatID: adminChatID, client: client}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendToAdmin sends an HTML message to the configured admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s == nil || s.botToken == "" || s.adminChatID == "" {
		return nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(telegramMessage{ChatID: s.adminChatID, Text: text, ParseMode: "HTML"}).
		Post(fmt.Sprintf("/bot%s/sendMessage", s.botToken))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode())
	}
	return nil
}

// NotifyPartnerRegistered tells ops a partner is waiting for approval.
func (s *TelegramService) NotifyPartnerRegistered(ctx context.Context, name, email, shop string) error {
	text := fmt.Sprintf("🚚 <b>New delivery partner</b>\n\nName: %s\nEmail: %s\nShop: %s\n\nStatus: pending approval",
		html.EscapeString(name), html.EscapeString(email), html.EscapeString(shop))
	return s.SendToAdmin(ctx, text)
}
