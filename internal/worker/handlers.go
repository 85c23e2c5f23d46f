// Package worker runs the background jobs: importing OAuth profile pictures
// and purging expired OAuth state.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gaev-art/gain-grid/internal/apiclient"
	"github.com/gaev-art/gain-grid/internal/services"
	"github.com/gaev-art/gain-grid/internal/validation"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
)

type AvatarStore interface {
	SetUserAvatar(ctx context.Context, userID uuid.UUID, avatarPath string) error
}

// AvatarImporter copies a provider profile picture into avatar storage.
type AvatarImporter struct {
	// api must have no base URL: picture URLs are absolute.
	api     *apiclient.Client
	storage services.StorageService
	users   AvatarStore
	log     logrus.FieldLogger
}

func NewAvatarImporter(api *apiclient.Client, storage services.StorageService, users AvatarStore, log logrus.FieldLogger) *AvatarImporter {
	return &AvatarImporter{
		api:     api,
		storage: storage,
		users:   users,
		log:     log.WithField("task", services.TypeAvatarImport),
	}
}

func (h *AvatarImporter) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p services.AvatarImportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", p.UserID, asynq.SkipRetry)
	}
	log := h.log.WithField("user_id", userID)

	resp := apiclient.Get[apiclient.Blob](ctx, h.api, p.PictureURL, &apiclient.RequestConfig{
		Headers: map[string]string{"Accept": "image/*"},
	})
	if !resp.Success {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("picture unavailable: %s: %w", resp.Error, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to fetch picture: %s", resp.Error)
	}

	image := resp.Data
	if err := validation.ValidateImageType(image.ContentType); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if len(image.Data) == 0 || len(image.Data) > validation.MaxImageSize {
		return fmt.Errorf("picture size %d out of range: %w", len(image.Data), asynq.SkipRetry)
	}

	objectName := fmt.Sprintf("%s/avatar%s", userID, validation.ImageExtension(image.ContentType))
	_, err = h.storage.Upload(ctx, services.AvatarBucket, objectName, bytes.NewReader(image.Data), int64(len(image.Data)), minio.PutObjectOptions{
		ContentType: image.ContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to store avatar: %w", err)
	}
	if err := h.users.SetUserAvatar(ctx, userID, objectName); err != nil {
		return fmt.Errorf("failed to save avatar path: %w", err)
	}

	log.WithField("path", objectName).Info("Imported avatar")
	return nil
}

type StatePurger interface {
	PurgeOAuthStates(ctx context.Context, before time.Time) (int64, error)
}

// PurgeHandler deletes OAuth state rows whose sign-in was never completed.
type PurgeHandler struct {
	states StatePurger
	log    logrus.FieldLogger
}

func NewPurgeHandler(states StatePurger, log logrus.FieldLogger) *PurgeHandler {
	return &PurgeHandler{states: states, log: log.WithField("task", services.TypePurgeOAuthStates)}
}

func (h *PurgeHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := h.states.PurgeOAuthStates(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to purge oauth states: %w", err)
	}
	if n > 0 {
		h.log.WithField("purged", n).Info("Purged expired OAuth states")
	}
	return nil
}
