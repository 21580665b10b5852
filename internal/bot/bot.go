// Package bot implements the Telegram surface: long polling, command and
// callback handlers, the payment flow, and delivery of model replies.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/dkotenko/telegpt/internal/domain"
	"github.com/dkotenko/telegpt/internal/metrics"
	"github.com/dkotenko/telegpt/internal/service"
	"github.com/dkotenko/telegpt/internal/storage"
)

// maxMessageLength is Telegram's limit for a single text message. Longer
// replies are delivered as text documents.
const maxMessageLength = 4096

// payloadPrefix tags invoice payloads issued by this bot.
const payloadPrefix = "subscription"

// telegramAPI is the slice of the Bot API client the handlers use. Tests
// substitute a recording fake.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ telegramAPI = (*tgbotapi.BotAPI)(nil)

// Bot wires Telegram updates to the account, subscription, and dispatch
// services. One instance polls one bot token.
type Bot struct {
	api           telegramAPI
	username      string
	accounts      *service.Accounts
	subscriptions *service.Subscriptions
	dispatcher    *service.Dispatcher
	files         storage.Store
	providerToken string
	pollTimeout   time.Duration
	logger        *slog.Logger
	httpClient    *http.Client
}

type Config struct {
	Token         string
	ProviderToken string
	PollTimeout   time.Duration
}

func New(cfg Config, accounts *service.Accounts, subscriptions *service.Subscriptions, dispatcher *service.Dispatcher, files storage.Store, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization failed: %w", err)
	}

	return &Bot{
		api:           api,
		username:      api.Self.UserName,
		accounts:      accounts,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		files:         files,
		providerToken: cfg.ProviderToken,
		pollTimeout:   cfg.PollTimeout,
		logger:        logger,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Run polls for updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot polling started", "username", b.username)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			b.logger.Error("handler panicked", "panic", r)
		}
	}()

	switch {
	case update.PreCheckoutQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("pre_checkout").Inc()
		b.handlePreCheckout(ctx, update.PreCheckoutQuery)

	case update.CallbackQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		metrics.UpdatesTotal.WithLabelValues("payment").Inc()
		b.handleSuccessfulPayment(ctx, update.Message)

	case update.Message != nil && update.Message.IsCommand():
		metrics.UpdatesTotal.WithLabelValues("command").Inc()
		b.handleCommand(ctx, update.Message)

	case update.Message != nil:
		metrics.UpdatesTotal.WithLabelValues("message").Inc()
		b.handleChatRequest(ctx, update.Message)
	}
}

// ============================================================================
// Commands
// ============================================================================

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if _, err := b.accounts.View(ctx, userID); err != nil {
			b.fail(chatID, "load account", err)
			return
		}
		b.send(tgbotapi.NewMessage(chatID, welcomeText))

	case "help":
		b.send(tgbotapi.NewMessage(chatID, helpText))

	case "new_chat":
		_, err := b.accounts.Update(ctx, userID, func(a *domain.Account) error {
			a.ResetHistory()
			return nil
		})
		if err != nil {
			b.fail(chatID, "reset chat", err)
			return
		}
		b.send(tgbotapi.NewMessage(chatID, newChatText))

	case "model":
		reply := tgbotapi.NewMessage(chatID, chooseModelText)
		reply.ReplyMarkup = modelKeyboard()
		b.send(reply)

	case "premium":
		if _, err := b.accounts.View(ctx, userID); err != nil {
			b.fail(chatID, "load account", err)
			return
		}
		reply := tgbotapi.NewMessage(chatID, premiumText)
		reply.ReplyMarkup = premiumKeyboard()
		b.send(reply)

	case "account":
		a, err := b.accounts.View(ctx, userID)
		if err != nil {
			b.fail(chatID, "load account", err)
			return
		}
		b.send(tgbotapi.NewMessage(chatID, accountText(a)))

	default:
		b.send(tgbotapi.NewMessage(chatID, helpText))
	}
}

func modelKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(domain.Models))
	for _, m := range domain.Models {
		name := m.UpstreamName()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, name),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func premiumKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(domain.PaidTiers))
	for _, t := range domain.PaidTiers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tierNames[t], string(t)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ============================================================================
// Callbacks: model selection and tier selection
// ============================================================================

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Error("failed to answer callback", "error", err)
	}

	// Stale and inline-mode callbacks arrive without the source message.
	if query.Message == nil {
		b.logger.Warn("callback without source message", "telegram_id", query.From.ID, "data", query.Data)
		return
	}

	if model, ok := domain.ModelFromUpstreamName(query.Data); ok {
		b.handleModelChoice(ctx, query, model)
		return
	}

	if tier := domain.Tier(query.Data); tier.Paid() {
		b.handleTierChoice(ctx, query, tier)
		return
	}

	b.logger.Warn("unknown callback data", "data", query.Data)
}

func (b *Bot) handleModelChoice(ctx context.Context, query *tgbotapi.CallbackQuery, model domain.Model) {
	userID := query.From.ID
	chatID := query.Message.Chat.ID

	_, err := b.accounts.Update(ctx, userID, func(a *domain.Account) error {
		a.SwitchModel(model)
		return nil
	})
	if err != nil {
		b.fail(chatID, "switch model", err)
		return
	}

	b.send(tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, modelChosenText(model)))
	b.send(tgbotapi.NewMessage(chatID, newChatText))
}

func (b *Bot) handleTierChoice(ctx context.Context, query *tgbotapi.CallbackQuery, tier domain.Tier) {
	userID := query.From.ID
	chatID := query.Message.Chat.ID

	if err := b.subscriptions.SelectTier(ctx, userID, tier); err != nil {
		b.fail(chatID, "select tier", err)
		return
	}

	allowance, ok := domain.GetAllowance(tier)
	if !ok {
		b.fail(chatID, "price lookup", domain.Invalid("bot.invoice", "no allowance for tier"))
		return
	}

	b.send(tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, tierChosenText(tier)))

	invoice := tgbotapi.NewInvoice(
		chatID,
		invoiceTitle,
		invoiceDescription,
		invoicePayload(tier),
		b.providerToken,
		"subscription",
		"RUB",
		[]tgbotapi.LabeledPrice{{Label: invoiceLabel, Amount: allowance.PriceRUB * 100}},
	)
	if _, err := b.api.Send(invoice); err != nil {
		b.fail(chatID, "send invoice", err)
	}
}

// ============================================================================
// Payments
// ============================================================================

// invoicePayload tags an invoice with its tier and a unique id so the later
// checkout stages can recover which tier is being bought.
func invoicePayload(tier domain.Tier) string {
	return fmt.Sprintf("%s:%s:%s", payloadPrefix, tier, uuid.NewString())
}

// parsePayload extracts the tier from an invoice payload produced by
// invoicePayload. Returns false for foreign or malformed payloads.
func parsePayload(payload string) (domain.Tier, bool) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return "", false
	}
	tier := domain.Tier(parts[1])
	if !tier.Paid() {
		return "", false
	}
	return tier, true
}

// handlePreCheckout approves the checkout only when the invoice tier matches
// the tier the user selected. Telegram requires an answer within 10 seconds.
func (b *Bot) handlePreCheckout(ctx context.Context, query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: query.ID, OK: true}

	tier, ok := parsePayload(query.InvoicePayload)
	if !ok {
		answer.OK = false
		answer.ErrorMessage = "Something went wrong"
	} else {
		pending, err := b.subscriptions.PendingTier(ctx, query.From.ID)
		if err != nil || pending != tier {
			b.logger.Warn("pre-checkout rejected",
				"telegram_id", query.From.ID, "invoice_tier", tier, "pending_tier", pending, "error", err)
			answer.OK = false
			answer.ErrorMessage = "Something went wrong"
		}
	}

	if _, err := b.api.Request(answer); err != nil {
		b.logger.Error("failed to answer pre-checkout query", "error", err)
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	tier, ok := parsePayload(msg.SuccessfulPayment.InvoicePayload)
	if !ok {
		b.logger.Error("payment with foreign payload",
			"telegram_id", userID, "payload", msg.SuccessfulPayment.InvoicePayload)
		b.send(tgbotapi.NewMessage(chatID, paymentFailedText))
		return
	}

	account, err := b.subscriptions.ConfirmPayment(ctx, userID, tier)
	if err != nil {
		// The money has been taken at this point; the mismatch has already
		// been logged for the operator by the subscription service.
		b.send(tgbotapi.NewMessage(chatID, paymentFailedText))
		return
	}

	b.send(tgbotapi.NewMessage(chatID, paymentConfirmedText(account)))
}

// ============================================================================
// Model requests
// ============================================================================

func (b *Bot) handleChatRequest(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	account, err := b.accounts.View(ctx, userID)
	if err != nil {
		b.fail(chatID, "load account", err)
		return
	}

	req, ok := b.buildRequest(ctx, chatID, account.CurrentModel, msg)
	if !ok {
		return
	}

	b.send(tgbotapi.NewMessage(chatID, processingText))

	result, err := b.dispatcher.Dispatch(ctx, userID, req)
	if err != nil {
		if domain.ErrorCode(err) == domain.ECONTENT {
			b.send(tgbotapi.NewMessage(chatID, contentPolicyText))
			return
		}
		b.fail(chatID, "dispatch", err)
		return
	}

	switch result.Status {
	case service.StatusDenied:
		b.send(tgbotapi.NewMessage(chatID, quotaText))
	case service.StatusUnsupported:
		b.fail(chatID, "dispatch", domain.UnsupportedModel("bot.request", result.Model))
	case service.StatusReplied:
		b.deliver(ctx, chatID, userID, result)
	}
}

// buildRequest shapes the inbound message for the account's selected model.
// Shape mismatches (a voice note sent to a chat model, text sent to the
// transcription model) are answered here without charging the ledger.
func (b *Bot) buildRequest(ctx context.Context, chatID int64, model domain.Model, msg *tgbotapi.Message) (service.Request, bool) {
	switch {
	case msg.Voice != nil:
		if model != domain.ModelTranscription {
			b.send(tgbotapi.NewMessage(chatID, voiceToChatText))
			return service.Request{}, false
		}
		audio, name, err := b.fetchVoice(ctx, msg.From.ID, msg.Voice.FileID)
		if err != nil {
			b.fail(chatID, "download voice", err)
			return service.Request{}, false
		}
		return service.Request{Audio: audio, AudioName: name}, true

	case len(msg.Photo) > 0:
		if !model.IsChat() {
			b.send(tgbotapi.NewMessage(chatID, textToImageOnlyText))
			return service.Request{}, false
		}
		// Telegram sends multiple sizes; the last one is the largest.
		url, err := b.api.GetFileDirectURL(msg.Photo[len(msg.Photo)-1].FileID)
		if err != nil {
			b.fail(chatID, "resolve photo", err)
			return service.Request{}, false
		}
		return service.Request{Text: msg.Caption, ImageURL: url}, true

	default:
		if model == domain.ModelTranscription {
			b.send(tgbotapi.NewMessage(chatID, voiceOnlyText))
			return service.Request{}, false
		}
		return service.Request{Text: msg.Text}, true
	}
}

// fetchVoice downloads a voice note from Telegram and archives a copy.
func (b *Bot) fetchVoice(ctx context.Context, userID int64, fileID string) ([]byte, string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve voice file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download voice file: status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	name := fmt.Sprintf("%s-%d.ogg", uuid.NewString(), userID)
	key := "voice_messages/" + name
	if err := b.files.Put(ctx, key, bytes.NewReader(audio)); err != nil {
		// Archival only; the transcription still proceeds.
		b.logger.Error("failed to archive voice message", "key", key, "error", err)
	}

	return audio, name, nil
}

// deliver sends a dispatch result back to the chat. Image replies go out as
// documents so Telegram does not recompress them; chat replies over the
// message size limit are delivered as text files.
func (b *Bot) deliver(ctx context.Context, chatID, userID int64, result service.Result) {
	switch {
	case result.Model == domain.ModelImage:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(result.Reply))
		if _, err := b.api.Send(doc); err != nil {
			b.fail(chatID, "send image", err)
		}

	case len(result.Reply) > maxMessageLength:
		name := fmt.Sprintf("response%d.txt", userID)
		key := fmt.Sprintf("replies/%s-%s", uuid.NewString(), name)
		if err := b.files.Put(ctx, key, strings.NewReader(result.Reply)); err != nil {
			b.logger.Error("failed to archive long reply", "key", key, "error", err)
		}

		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: []byte(result.Reply)})
		doc.Caption = longReplyCaption
		if _, err := b.api.Send(doc); err != nil {
			b.fail(chatID, "send document", err)
		}

	default:
		reply := tgbotapi.NewMessage(chatID, result.Reply)
		if result.Model.IsChat() {
			reply.ParseMode = tgbotapi.ModeMarkdown
		}
		b.send(reply)
	}
}

// ============================================================================
// Send helpers
// ============================================================================

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("failed to send message", "error", err)
	}
}

// fail logs the error and tells the user something went wrong, without
// leaking internals to the chat.
func (b *Bot) fail(chatID int64, op string, err error) {
	b.logger.Error("handler failed", "op", op, "error", err)
	b.send(tgbotapi.NewMessage(chatID, genericErrText))
}
