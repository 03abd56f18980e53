package model

import (
	"time"

	"golang.org/x/oauth2"
)

// CredentialProject is one set of API credentials with its own upload quota.
type CredentialProject struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	QuotaExceeded     bool       `json:"quota_exceeded"`
	QuotaResetAt      *time.Time `json:"quota_reset_at"`
	Authenticated     bool       `json:"authenticated"`
	Active            bool       `json:"active"`
	SelectedChannelID string     `json:"selected_channel_id"`
}

// Credential is the handle the uploader receives for the active project.
// The token source never leaves the process.
type Credential struct {
	ProjectID   string
	ChannelID   string
	TokenSource oauth2.TokenSource `json:"-"`
}

// CredentialMaterial is what an operator supplies to register a project:
// the downloaded client secret JSON and, optionally, an already issued token.
type CredentialMaterial struct {
	Name         string        `json:"name"`
	ClientSecret []byte        `json:"client_secret"`
	Token        *oauth2.Token `json:"token,omitempty"`
}

type Channel struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	ThumbnailURL      string `json:"thumbnail_url"`
	UploadsPlaylistID string `json:"uploads_playlist_id"`
}

// QuotaState is the persisted part of a project's quota bookkeeping.
type QuotaState struct {
	ProjectID    string    `json:"project_id"`
	QuotaResetAt time.Time `json:"quota_reset_at"`
}
