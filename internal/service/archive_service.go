package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/google/uuid"

	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/port"
)

const defaultLinkExpiry = 15 * time.Minute

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ResultLink is a time-limited download link for an archived result.
type ResultLink struct {
	RequestID string    `json:"requestId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResultLinker hands out download links for archived results.
type ResultLinker interface {
	Link(ctx context.Context, accountID uuid.UUID, requestID string) (*ResultLink, error)
}

// ResultArchive writes successful parse results to object storage as JSON.
type ResultArchive struct {
	storage    port.ObjectStorage
	tasks      *TaskRunner
	bucket     string
	prefix     string
	linkExpiry time.Duration
	now        func() time.Time
}

// NewResultArchive creates a new ResultArchive. linkExpiry <= 0 uses 15 minutes.
func NewResultArchive(storage port.ObjectStorage, tasks *TaskRunner, bucket, prefix string, linkExpiry time.Duration) *ResultArchive {
	if linkExpiry <= 0 {
		linkExpiry = defaultLinkExpiry
	}
	return &ResultArchive{
		storage:    storage,
		tasks:      tasks,
		bucket:     bucket,
		prefix:     prefix,
		linkExpiry: linkExpiry,
		now:        time.Now,
	}
}

// ObjectKey returns the storage key of a request's archived result.
func (a *ResultArchive) ObjectKey(accountID uuid.UUID, requestID string) string {
	return path.Join(a.prefix, accountID.String(), requestID+".json")
}

// Archive uploads result in the background.
func (a *ResultArchive) Archive(accountID uuid.UUID, result *domain.ParseResult) {
	if result == nil || result.Metadata == nil {
		return
	}
	requestID := result.Metadata.RequestID
	a.tasks.Go("archive.result", func(ctx context.Context) {
		if err := a.Store(ctx, accountID, result); err != nil {
			logger.Warn("service.ResultArchive.Archive: upload failed",
				"account_id", accountID, "request_id", requestID, "error", err)
		}
	})
}

// Store uploads result synchronously.
func (a *ResultArchive) Store(ctx context.Context, accountID uuid.UUID, result *domain.ParseResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("archive.Store: encoding result: %w", err)
	}
	key := a.ObjectKey(accountID, result.Metadata.RequestID)
	out, err := a.storage.Upload(ctx, port.UploadInput{
		Bucket:      a.bucket,
		Key:         key,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
		Size:        int64(len(body)),
	})
	if err != nil {
		return fmt.Errorf("archive.Store: %w", err)
	}
	logger.Debug("service.ResultArchive.Store: result archived", "key", key, "location", out.Location)
	return nil
}

// Link presigns a GET for the account's archived result. The object is keyed
// by account, so one account can never presign another account's results.
// The link is issued whether or not the upload has landed yet.
func (a *ResultArchive) Link(ctx context.Context, accountID uuid.UUID, requestID string) (*ResultLink, error) {
	if !requestIDPattern.MatchString(requestID) {
		return nil, domain.ErrInvalidRequestID
	}
	key := a.ObjectKey(accountID, requestID)
	expiresAt := a.now().UTC().Add(a.linkExpiry)
	url, err := a.storage.GetPresignedURL(ctx, a.bucket, key, int64(a.linkExpiry/time.Second))
	if err != nil {
		return nil, fmt.Errorf("archive.Link: %w", err)
	}
	return &ResultLink{RequestID: requestID, URL: url, ExpiresAt: expiresAt}, nil
}
