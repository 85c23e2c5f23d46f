package handlers

import (
	"context"
	"errors"
	"mime"
	"path/filepath"

	"github.com/gaev-art/gain-grid/internal/auth"
	"github.com/gaev-art/gain-grid/internal/database"
	"github.com/gaev-art/gain-grid/internal/models"
	"github.com/gaev-art/gain-grid/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.UserCache, error)
}

// AvatarHandler serves profile pictures imported from OAuth providers.
type AvatarHandler struct {
	users   UserLookup
	storage services.StorageService
	log     logrus.FieldLogger
}

func NewAvatarHandler(users UserLookup, storage services.StorageService, log logrus.FieldLogger) *AvatarHandler {
	return &AvatarHandler{
		users:   users,
		storage: storage,
		log:     log.WithField("component", "avatar_handler"),
	}
}

func (h *AvatarHandler) Me(c *fiber.Ctx) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	user, err := h.users.GetUserByID(c.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(models.Envelope{Message: "User not found"})
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to load user")
		return c.Status(fiber.StatusInternalServerError).JSON(models.Envelope{Message: "Failed to load avatar"})
	}
	if user.AvatarPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(models.Envelope{Message: "No avatar"})
	}

	obj, err := h.storage.Download(c.Context(), services.AvatarBucket, user.AvatarPath, minio.GetObjectOptions{})
	if err != nil {
		h.log.WithError(err).WithField("path", user.AvatarPath).Error("Failed to download avatar")
		return c.Status(fiber.StatusInternalServerError).JSON(models.Envelope{Message: "Failed to load avatar"})
	}

	contentType := mime.TypeByExtension(filepath.Ext(user.AvatarPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	// SendStream closes obj once the body is written.
	return c.SendStream(obj)
}
