package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types handled by the worker.
const (
	TypeAvatarImport     = "user:avatar_import"
	TypePurgeOAuthStates = "auth:purge_oauth_states"
)

type AvatarImportPayload struct {
	UserID     string `json:"user_id"`
	PictureURL string `json:"picture_url"`
}

func NewAvatarImportTask(userID, pictureURL string) (*asynq.Task, error) {
	payload, err := json.Marshal(AvatarImportPayload{UserID: userID, PictureURL: pictureURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode avatar import payload: %w", err)
	}
	return asynq.NewTask(TypeAvatarImport, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

func NewPurgeOAuthStatesTask() *asynq.Task {
	return asynq.NewTask(TypePurgeOAuthStates, nil, asynq.MaxRetry(1))
}

type JobService struct {
	client *asynq.Client
}

func NewJobService(redisOpt asynq.RedisClientOpt) *JobService {
	client := asynq.NewClient(redisOpt)
	return &JobService{client: client}
}

func (j *JobService) Enqueue(ctx context.Context, task *asynq.Task) error {
	_, err := j.client.EnqueueContext(ctx, task)
	return err
}

// EnqueueAvatarImport schedules copying an OAuth profile picture into storage.
func (j *JobService) EnqueueAvatarImport(ctx context.Context, userID, pictureURL string) error {
	task, err := NewAvatarImportTask(userID, pictureURL)
	if err != nil {
		return err
	}
	return j.Enqueue(ctx, task)
}

func (j *JobService) Close() error {
	return j.client.Close()
}
