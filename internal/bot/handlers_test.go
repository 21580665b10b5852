package bot

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkotenko/telegpt/internal/ai/mock"
	"github.com/dkotenko/telegpt/internal/domain"
	"github.com/dkotenko/telegpt/internal/service"
	"github.com/dkotenko/telegpt/internal/storage"
	"github.com/dkotenko/telegpt/internal/store"
)

// fakeAPI records everything the bot sends instead of talking to Telegram.
type fakeAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	fileURL   string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

// messages returns the text of every plain message sent so far.
func (f *fakeAPI) messages() []string {
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) documents() []tgbotapi.DocumentConfig {
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

type botFixture struct {
	bot        *Bot
	api        *fakeAPI
	accounts   *service.Accounts
	provider   *mock.Provider
	storageDir string
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := service.NewAccounts(store.NewMemoryStore(), logger)
	provider := mock.New(logger)
	dispatcher := service.NewDispatcher(accounts, service.Providers{
		Chat:        provider,
		Image:       provider,
		Transcriber: provider,
	}, logger)

	dir := t.TempDir()
	files, err := storage.NewLocalStore(dir, logger)
	require.NoError(t, err)

	api := &fakeAPI{}
	b := &Bot{
		api:           api,
		username:      "telegpt_test_bot",
		accounts:      accounts,
		subscriptions: service.NewSubscriptions(accounts, logger),
		dispatcher:    dispatcher,
		files:         files,
		providerToken: "test-provider-token",
		pollTimeout:   time.Second,
		logger:        logger,
		httpClient:    &http.Client{Timeout: time.Second},
	}
	return &botFixture{bot: b, api: api, accounts: accounts, provider: provider, storageDir: dir}
}

func textMessage(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func TestDeliverShortChatReplyAsMarkdownMessage(t *testing.T) {
	f := newBotFixture(t)

	f.bot.deliver(context.Background(), 10, 7, service.Result{
		Status: service.StatusReplied,
		Model:  domain.ModelChatMini,
		Reply:  "short answer",
	})

	require.Len(t, f.api.sent, 1)
	msg, ok := f.api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "short answer", msg.Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
}

func TestDeliverLongChatReplyAsDocument(t *testing.T) {
	f := newBotFixture(t)
	long := strings.Repeat("a", maxMessageLength+1)

	f.bot.deliver(context.Background(), 10, 7, service.Result{
		Status: service.StatusReplied,
		Model:  domain.ModelChatMini,
		Reply:  long,
	})

	docs := f.api.documents()
	require.Len(t, docs, 1)
	assert.Equal(t, longReplyCaption, docs[0].Caption)

	file, ok := docs[0].File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "response7.txt", file.Name)
	assert.Equal(t, long, string(file.Bytes))

	// No plain message went out alongside the document.
	assert.Empty(t, f.api.messages())

	// The reply was archived through the storage layer.
	entries, err := os.ReadDir(filepath.Join(f.storageDir, "replies"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "response7.txt"))
}

func TestDeliverExactLimitReplyStaysAMessage(t *testing.T) {
	f := newBotFixture(t)
	reply := strings.Repeat("a", maxMessageLength)

	f.bot.deliver(context.Background(), 10, 7, service.Result{
		Status: service.StatusReplied,
		Model:  domain.ModelChatMini,
		Reply:  reply,
	})

	assert.Empty(t, f.api.documents())
	require.Len(t, f.api.messages(), 1)
}

func TestDeliverImageReplyAsDocumentURL(t *testing.T) {
	f := newBotFixture(t)

	f.bot.deliver(context.Background(), 10, 7, service.Result{
		Status: service.StatusReplied,
		Model:  domain.ModelImage,
		Reply:  "https://img.example/1.png",
	})

	docs := f.api.documents()
	require.Len(t, docs, 1)
	url, ok := docs[0].File.(tgbotapi.FileURL)
	require.True(t, ok)
	assert.Equal(t, "https://img.example/1.png", string(url))
}

func TestVoiceNoteToChatModelIsNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	msg := textMessage(1, 1, "")
	msg.Voice = &tgbotapi.Voice{FileID: "voice-file"}

	f.bot.handleChatRequest(ctx, msg)

	assert.Equal(t, []string{voiceToChatText}, f.api.messages())
	assert.Zero(t, f.provider.CompleteCalls())

	acct, err := f.accounts.View(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.FreeDailyChatMini, acct.Quota.ChatMini)
}

func TestTextToTranscriptionModelIsNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	_, err := f.accounts.Update(ctx, 1, func(a *domain.Account) error {
		a.SwitchModel(domain.ModelTranscription)
		a.Quota.Transcription = 3
		return nil
	})
	require.NoError(t, err)

	f.bot.handleChatRequest(ctx, textMessage(1, 1, "transcribe this please"))

	assert.Equal(t, []string{voiceOnlyText}, f.api.messages())
	assert.Zero(t, f.provider.TranscribeCalls())

	acct, err := f.accounts.View(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Quota(3), acct.Quota.Transcription)
}

func TestPhotoToImageModelIsNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	_, err := f.accounts.Update(ctx, 1, func(a *domain.Account) error {
		a.SwitchModel(domain.ModelImage)
		a.Quota.Image = 2
		return nil
	})
	require.NoError(t, err)

	msg := textMessage(1, 1, "")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "photo-file"}}

	f.bot.handleChatRequest(ctx, msg)

	assert.Equal(t, []string{textToImageOnlyText}, f.api.messages())
	assert.Zero(t, f.provider.GenerateCalls())

	acct, err := f.accounts.View(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Quota(2), acct.Quota.Image)
}

func TestChatRequestRepliesThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)
	f.provider.CompleteResponse = "hello"

	f.bot.handleChatRequest(ctx, textMessage(1, 1, "hi"))

	assert.Equal(t, []string{processingText, "hello"}, f.api.messages())
	assert.Equal(t, 1, f.provider.CompleteCalls())
}

func TestQuotaExhaustedSendsDeniedMessage(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	_, err := f.accounts.Update(ctx, 1, func(a *domain.Account) error {
		a.Quota.ChatMini = 0
		return nil
	})
	require.NoError(t, err)

	f.bot.handleChatRequest(ctx, textMessage(1, 1, "hi"))

	assert.Equal(t, []string{processingText, quotaText}, f.api.messages())
	assert.Zero(t, f.provider.CompleteCalls())
}

func TestCallbackWithoutSourceMessageIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	// Stale (>48h) and inline-mode callbacks carry no Message.
	query := &tgbotapi.CallbackQuery{
		ID:   "q1",
		From: &tgbotapi.User{ID: 1},
		Data: domain.ModelChatFull.UpstreamName(),
	}

	assert.NotPanics(t, func() {
		f.bot.handleCallback(ctx, query)
	})

	// The callback was answered but no handler ran.
	assert.Len(t, f.api.requested, 1)
	assert.Empty(t, f.api.sent)

	acct, err := f.accounts.View(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ModelChatMini, acct.CurrentModel)
}
