// Package service contains the business logic layer.
//
// This file implements the request dispatcher: quota refresh and
// authorization, then routing to the chat, image, or transcription
// collaborator for the account's selected model.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/dkotenko/telegpt/internal/ai"
	"github.com/dkotenko/telegpt/internal/domain"
	"github.com/dkotenko/telegpt/internal/metrics"
)

// Providers bundles the opaque model collaborators a dispatcher routes to.
type Providers struct {
	Chat        ai.ChatCompleter
	Image       ai.ImageGenerator
	Transcriber ai.Transcriber
}

// Request carries one inbound user turn. Exactly one payload shape applies
// per model class: Text (optionally with ImageURL) for chat models, Text as
// the prompt for the image model, Audio for transcription.
type Request struct {
	Text      string
	ImageURL  string
	Audio     []byte
	AudioName string
}

// Status is the dispatch outcome variant.
type Status int

const (
	// StatusReplied means the request was authorized, routed, and answered.
	StatusReplied Status = iota

	// StatusDenied means the quota counter for the model was exhausted. No
	// collaborator was invoked and nothing beyond the ledger refresh was
	// persisted.
	StatusDenied

	// StatusUnsupported means the account's selected model is not routable.
	StatusUnsupported
)

// Result is the outcome of a dispatched request. Reply holds the completion
// text, the generated image URL, or the transcript, depending on the model.
type Result struct {
	Status Status
	Model  domain.Model
	Reply  string
}

// Dispatcher authorizes requests against the quota ledger and routes them.
type Dispatcher struct {
	accounts  *Accounts
	providers Providers
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(accounts *Accounts, providers Providers, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{accounts: accounts, providers: providers, logger: logger}
}

// Dispatch processes one user request end to end.
//
// Quota is consumed before the collaborator call and never refunded: a
// failed upstream call has already cost the user one request, and upstream
// errors are returned without any retry at this level.
func (d *Dispatcher) Dispatch(ctx context.Context, telegramID int64, req Request) (Result, error) {
	const op = "dispatch"

	var (
		model   domain.Model
		history []ai.ChatMessage
		authErr error
	)

	_, err := d.accounts.Update(ctx, telegramID, func(a *domain.Account) error {
		model = a.CurrentModel

		if err := AuthorizeAndConsume(a, model); err != nil {
			// Returned via authErr so the ledger refresh still persists.
			authErr = err
			return nil
		}

		if model.IsChat() {
			a.History = append(a.History, domain.Message{
				Role:     domain.RoleUser,
				Text:     req.Text,
				ImageURL: req.ImageURL,
			})
			history = chatHistory(a.History)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if authErr != nil {
		switch domain.ErrorCode(authErr) {
		case domain.EQUOTA:
			d.logger.Info("request denied, quota exhausted", "telegram_id", telegramID, "model", model)
			metrics.RequestsTotal.WithLabelValues(string(model), "denied").Inc()
			return Result{Status: StatusDenied, Model: model}, nil
		case domain.EUNSUPPORTED:
			metrics.RequestsTotal.WithLabelValues(string(model), "unsupported").Inc()
			return Result{Status: StatusUnsupported, Model: model}, nil
		default:
			return Result{}, authErr
		}
	}

	reply, err := d.route(ctx, telegramID, model, req, history)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(string(model), "failed").Inc()
		return Result{}, err
	}

	metrics.RequestsTotal.WithLabelValues(string(model), "replied").Inc()
	return Result{Status: StatusReplied, Model: model, Reply: reply}, nil
}

// route invokes the collaborator for the model class. Runs outside the
// per-account lock; quota has already been charged.
func (d *Dispatcher) route(ctx context.Context, telegramID int64, model domain.Model, req Request, history []ai.ChatMessage) (string, error) {
	const op = "dispatch.route"

	switch model {
	case domain.ModelChatMini, domain.ModelChatFull:
		reply, err := d.providers.Chat.Complete(ctx, model.UpstreamName(), history)
		if err != nil {
			return "", d.upstream(err, op, model)
		}
		d.appendReply(ctx, telegramID, model, reply)
		return reply, nil

	case domain.ModelImage:
		url, err := d.providers.Image.GenerateImage(ctx, model.UpstreamName(), req.Text)
		if err != nil {
			return "", d.upstream(err, op, model)
		}
		return url, nil

	case domain.ModelTranscription:
		text, err := d.providers.Transcriber.Transcribe(ctx, model.UpstreamName(), req.Audio, req.AudioName)
		if err != nil {
			return "", d.upstream(err, op, model)
		}
		return text, nil

	default:
		return "", domain.UnsupportedModel(op, model)
	}
}

// appendReply records the model's answer in the chat session. The user may
// have switched models while the call was in flight; the stale reply is
// dropped in that case because switching already reset the session.
func (d *Dispatcher) appendReply(ctx context.Context, telegramID int64, model domain.Model, reply string) {
	_, err := d.accounts.Update(ctx, telegramID, func(a *domain.Account) error {
		if a.CurrentModel == model {
			a.History = append(a.History, domain.Message{Role: domain.RoleSystem, Text: reply})
		}
		return nil
	})
	if err != nil {
		d.logger.Error("failed to record reply in session", "telegram_id", telegramID, "error", err)
	}
}

func (d *Dispatcher) upstream(err error, op string, model domain.Model) error {
	metrics.UpstreamErrors.WithLabelValues(string(model)).Inc()
	d.logger.Error("upstream call failed", "model", model, "error", err)

	if errors.Is(err, ai.EContentPolicy) {
		return domain.ContentPolicy(err, op)
	}
	return domain.Upstream(err, op)
}

func chatHistory(msgs []domain.Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(msgs))
	for _, m := range slices.Clone(msgs) {
		out = append(out, ai.ChatMessage{Role: string(m.Role), Text: m.Text, ImageURL: m.ImageURL})
	}
	return out
}
