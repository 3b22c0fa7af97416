package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org/bot"

// StatusFunc renders the reply to the /status command.
type StatusFunc func(ctx context.Context) string

// Bot delivers operator alerts to one chat and answers a couple of
// read-only commands from that chat.
type Bot struct {
	token   string
	chatID  int64
	baseURL string
	status  StatusFunc
	logger  *slog.Logger
	client  *http.Client
	offset  int64
}

func NewBot(token string, chatID int64, status StatusFunc, logger *slog.Logger) *Bot {
	return &Bot{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		status:  status,
		logger:  logger,
		client:  &http.Client{Timeout: 40 * time.Second},
	}
}

// Notify sends text to the configured operator chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	return b.SendMessage(ctx, b.chatID, text)
}

// SendMessage sends a text message to a Telegram chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+b.token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	return nil
}

// Run starts the long-polling loop for incoming Telegram messages.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started", "chat_id", b.chatID)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.poll(ctx)
		}
	}
}

func (b *Bot) poll(ctx context.Context) {
	url := fmt.Sprintf("%s%s/getUpdates?offset=%d&timeout=30", b.baseURL, b.token, b.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		b.logger.Error("create poll request", "error", err)
		return
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("poll updates", "error", err)
		sleep(ctx, 5*time.Second)
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool `json:"ok"`
		Result []struct {
			UpdateID int64 `json:"update_id"`
			Message  *struct {
				Chat struct {
					ID int64 `json:"id"`
				} `json:"chat"`
				Text string `json:"text"`
			} `json:"message"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		b.logger.Error("decode updates", "error", err)
		sleep(ctx, 5*time.Second)
		return
	}

	for _, u := range result.Result {
		b.offset = u.UpdateID + 1
		if u.Message == nil || u.Message.Chat.ID != b.chatID {
			continue
		}
		b.handle(ctx, strings.TrimSpace(u.Message.Text))
	}
}

func (b *Bot) handle(ctx context.Context, text string) {
	var reply string
	switch text {
	case "/status":
		reply = "No status available."
		if b.status != nil {
			reply = b.status(ctx)
		}
	case "/help", "/start":
		reply = "🤖 <b>Pair Dashboard Bot</b>\n\n" +
			"Commands:\n" +
			"/status - Current pair and market cap\n" +
			"/help - Show this message\n\n" +
			"Exit warnings are posted here automatically."
	default:
		reply = "Unknown command. Send /help for available commands."
	}
	if err := b.Notify(ctx, reply); err != nil {
		b.logger.Error("send reply failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
