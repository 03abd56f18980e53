package repository

import (
	"context"

	"autouploader/domain/dto"
	"autouploader/domain/model"
)

// IUploader transfers one file to the remote platform. Every error it
// returns is a *model.UploadError carrying the authoritative class.
type IUploader interface {
	Upload(ctx context.Context, task *model.UploadTask, credential *model.Credential, metadata dto.UploadMetadata, progress dto.ProgressFunc) (*dto.UploadResult, error)
}

// IChannelClient lists the channels reachable with a credential
type IChannelClient interface {
	ListChannels(ctx context.Context, credential *model.Credential) ([]model.Channel, error)
}
