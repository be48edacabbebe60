package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"gorm.io/gorm"
)

var ErrRecipientNotFound = errors.New("recipient_not_found")

// Telegram posts messages through the Bot API. A user's external id is the
// chat id the bot talks to.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	db      *gorm.DB
	users   userdomain.Repository
}

func NewTelegram(client *http.Client, baseURL, token string, db *gorm.DB, users userdomain.Repository) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Telegram{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		db:      db,
		users:   users,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, userID snowflake.ID, event Event, payload map[string]any) error {
	chatIDs, err := t.recipients(ctx, userID)
	if err != nil {
		return err
	}
	text := Render(event, payload)

	var errs []error
	for _, chatID := range chatIDs {
		if err := t.sendMessage(ctx, chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) recipients(ctx context.Context, userID snowflake.ID) ([]string, error) {
	if userID == Admins {
		admins, err := t.users.ListAdmins(ctx, t.db)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(admins))
		for _, admin := range admins {
			out = append(out, admin.ExternalID)
		}
		return out, nil
	}

	user, err := t.users.FindByID(ctx, t.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrRecipientNotFound
	}
	return []string{user.ExternalID}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	var decoded sendMessageResponse
	_ = json.Unmarshal(raw, &decoded)
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, decoded.Description)
	}
	return nil
}
