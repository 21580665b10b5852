package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkotenko/telegpt/internal/domain"
)

const (
	databaseName   = "user_database"
	collectionName = "users"
)

// accountDoc is the BSON shape of a stored account. Counters use int64 with
// -1 standing in for an unlimited counter, and dates are stored as BSON
// datetimes. History and the pending tier are never stored.
type accountDoc struct {
	TelegramID    int64      `bson:"telegram_id"`
	CurrentModel  string     `bson:"current_model"`
	ChatMini      int64      `bson:"quota_chat_mini"`
	ChatFull      int64      `bson:"quota_chat_full"`
	Image         int64      `bson:"quota_image"`
	Transcription int64      `bson:"quota_transcription"`
	Tier          string     `bson:"subscription"`
	ExpiryDate    *time.Time `bson:"subscription_expiry_date,omitempty"`
	LastFreeGrant *time.Time `bson:"last_free_request_date,omitempty"`
}

// MongoStore implements AccountStore on a MongoDB collection.
type MongoStore struct {
	users  *mongo.Collection
	logger *slog.Logger
}

// NewMongoStore wraps an established client. Call Ping on the client before
// constructing the store; connection failures surface there.
func NewMongoStore(client *mongo.Client, logger *slog.Logger) *MongoStore {
	return &MongoStore{
		users:  client.Database(databaseName).Collection(collectionName),
		logger: logger,
	}
}

// Find loads the account for a Telegram user ID.
func (s *MongoStore) Find(ctx context.Context, telegramID int64) (*domain.Account, error) {
	var doc accountDoc
	err := s.users.FindOne(ctx, bson.M{"telegram_id": telegramID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account %d: %w", telegramID, err)
	}
	return docToAccount(doc), nil
}

// Upsert merges the account's durable fields into the stored document.
func (s *MongoStore) Upsert(ctx context.Context, acct *domain.Account) error {
	doc := accountToDoc(acct)

	_, err := s.users.UpdateOne(ctx,
		bson.M{"telegram_id": acct.TelegramID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert account %d: %w", acct.TelegramID, err)
	}

	s.logger.Debug("account persisted", "telegram_id", acct.TelegramID, "tier", acct.Tier)
	return nil
}

// Delete removes the account document.
func (s *MongoStore) Delete(ctx context.Context, telegramID int64) error {
	if _, err := s.users.DeleteOne(ctx, bson.M{"telegram_id": telegramID}); err != nil {
		return fmt.Errorf("delete account %d: %w", telegramID, err)
	}
	return nil
}

func accountToDoc(a *domain.Account) accountDoc {
	doc := accountDoc{
		TelegramID:    a.TelegramID,
		CurrentModel:  string(a.CurrentModel),
		ChatMini:      int64(a.Quota.ChatMini),
		ChatFull:      int64(a.Quota.ChatFull),
		Image:         int64(a.Quota.Image),
		Transcription: int64(a.Quota.Transcription),
		Tier:          string(a.Tier),
	}
	if !a.ExpiryDate.IsZero() {
		t := a.ExpiryDate.UTC()
		doc.ExpiryDate = &t
	}
	if !a.LastFreeGrant.IsZero() {
		t := a.LastFreeGrant.UTC()
		doc.LastFreeGrant = &t
	}
	return doc
}

func docToAccount(doc accountDoc) *domain.Account {
	a := &domain.Account{
		TelegramID:   doc.TelegramID,
		CurrentModel: domain.Model(doc.CurrentModel),
		Quota: domain.QuotaSet{
			ChatMini:      domain.Quota(doc.ChatMini),
			ChatFull:      domain.Quota(doc.ChatFull),
			Image:         domain.Quota(doc.Image),
			Transcription: domain.Quota(doc.Transcription),
		},
		Tier: domain.Tier(doc.Tier),
	}
	if doc.ExpiryDate != nil {
		a.ExpiryDate = doc.ExpiryDate.UTC()
	}
	if doc.LastFreeGrant != nil {
		a.LastFreeGrant = doc.LastFreeGrant.UTC()
	}
	if !a.CurrentModel.Valid() {
		a.CurrentModel = domain.ModelChatMini
	}
	if !a.Tier.Valid() {
		a.Tier = domain.TierFree
	}
	return a
}
