package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/port"
)

const (
	secretLength   = 32
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyHashCost    = 10
	maxKeyName     = 100
)

// CreateKeyInput is the DTO for creating an API key.
type CreateKeyInput struct {
	Name        string             `json:"name" binding:"required,max=100"`
	Environment domain.Environment `json:"environment" binding:"required,oneof=live test"`
}

// CreatedKey carries the plaintext secret, which is only ever returned here.
type CreatedKey struct {
	Key    *domain.APIKey `json:"key"`
	Secret string         `json:"secret"`
}

// APIKeyService manages an account's API keys.
type APIKeyService interface {
	Create(ctx context.Context, accountID uuid.UUID, input CreateKeyInput) (*CreatedKey, error)
	List(ctx context.Context, accountID uuid.UUID) ([]domain.APIKey, error)
	Deactivate(ctx context.Context, accountID, keyID uuid.UUID) error
}

type apiKeyService struct {
	keyRepo     port.APIKeyRepository
	accountRepo port.AccountRepository
	tasks       *TaskRunner
	events      EventPublisher
	email       port.EmailSender
}

// NewAPIKeyService creates a new APIKeyService implementation. events and email may be nil.
func NewAPIKeyService(
	keyRepo port.APIKeyRepository,
	accountRepo port.AccountRepository,
	tasks *TaskRunner,
	events EventPublisher,
	email port.EmailSender,
) APIKeyService {
	return &apiKeyService{
		keyRepo:     keyRepo,
		accountRepo: accountRepo,
		tasks:       tasks,
		events:      events,
		email:       email,
	}
}

// GenerateSecret returns a new pk_<env>_ secret with 32 random alphanumerics.
func GenerateSecret(env domain.Environment) (string, error) {
	var b strings.Builder
	b.WriteString(env.KeyPrefix())
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := 0; i < secretLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating secret: %w", err)
		}
		b.WriteByte(secretAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *apiKeyService) Create(ctx context.Context, accountID uuid.UUID, input CreateKeyInput) (*CreatedKey, error) {
	if !input.Environment.Valid() {
		return nil, domain.ErrInvalidEnvironment
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > maxKeyName {
		return nil, domain.ErrInvalidKeyName
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("apikey.Create: %w", err)
	}
	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}

	secret, err := GenerateSecret(input.Environment)
	if err != nil {
		return nil, fmt.Errorf("apikey.Create: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), keyHashCost)
	if err != nil {
		return nil, fmt.Errorf("apikey.Create: hashing secret: %w", err)
	}

	key := &domain.APIKey{
		ID:              uuid.New(),
		AccountID:       accountID,
		KeyHash:         string(hash),
		LookupPrefix:    LookupPrefix(secret),
		Environment:     input.Environment,
		Name:            name,
		TierWhenCreated: account.Tier,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.keyRepo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("apikey.Create: %w", err)
	}
	logger.Info("service.APIKeyService.Create: key created",
		"account_id", accountID, "key_id", key.ID, "environment", string(key.Environment))

	if s.email != nil {
		email, keyName, prefix := account.Email, key.Name, key.LookupPrefix
		s.tasks.Go("email.key_created", func(ctx context.Context) {
			if err := s.email.SendKeyCreatedEmail(ctx, email, keyName, prefix); err != nil {
				logger.Warn("service.APIKeyService.Create: notification email failed", "account_id", accountID, "error", err)
			}
		})
	}
	if s.events != nil {
		s.events.Publish(accountID, domain.EventAPIKeyCreated, key.ID.String(), map[string]interface{}{
			"keyId":       key.ID.String(),
			"name":        key.Name,
			"environment": string(key.Environment),
			"keyPrefix":   key.LookupPrefix,
		})
	}

	return &CreatedKey{Key: key, Secret: secret}, nil
}

func (s *apiKeyService) List(ctx context.Context, accountID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("apikey.List: %w", err)
	}
	for i := range keys {
		keys[i].KeyHash = ""
	}
	return keys, nil
}

func (s *apiKeyService) Deactivate(ctx context.Context, accountID, keyID uuid.UUID) error {
	key, err := s.keyRepo.GetByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrAPIKeyNotFound
		}
		return fmt.Errorf("apikey.Deactivate: %w", err)
	}
	if key.AccountID != accountID {
		return domain.ErrForbidden
	}
	if err := s.keyRepo.Deactivate(ctx, keyID); err != nil {
		return fmt.Errorf("apikey.Deactivate: %w", err)
	}
	logger.Info("service.APIKeyService.Deactivate: key deactivated", "account_id", accountID, "key_id", keyID)

	if s.events != nil {
		s.events.Publish(accountID, domain.EventAPIKeyDeactivated, keyID.String(), map[string]interface{}{
			"keyId": keyID.String(),
			"name":  key.Name,
		})
	}
	return nil
}
