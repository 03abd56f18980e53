package repository

import (
	"context"

	"autouploader/domain/dto"
	"autouploader/domain/model"

	"golang.org/x/oauth2"
)

// IUploadHistory remembers finished uploads across restarts
type IUploadHistory interface {
	Record(ctx context.Context, history *model.UploadHistory) error
	WasUploaded(ctx context.Context, filePath string, fileSize int64) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]model.UploadHistory, error)
}

// IQuotaStateCache persists quota reset estimates per project
type IQuotaStateCache interface {
	Save(ctx context.Context, state model.QuotaState) error
	Load(ctx context.Context, projectID string) (*model.QuotaState, error)
	Clear(ctx context.Context, projectID string) error
}

// ITaskNotifier publishes terminal task events to an external consumer
type ITaskNotifier interface {
	Notify(ctx context.Context, event dto.TaskEvent) error
}

// StoredCredential is a project loaded from disk together with its token source
type StoredCredential struct {
	Project     model.CredentialProject
	TokenSource oauth2.TokenSource
}

// ICredentialStore owns the on-disk client secrets and tokens
type ICredentialStore interface {
	LoadAll(ctx context.Context) ([]StoredCredential, error)
	Add(ctx context.Context, material model.CredentialMaterial) (*StoredCredential, error)
}
