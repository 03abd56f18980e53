package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

const (
	secretPrefix = "client_secret_"
	tokenPrefix  = "token_"
)

var (
	scopes    = []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope}
	unsafeID  = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	errNoData = errors.New("client secret is empty")
)

// FileStore keeps client secrets in secretsDir and tokens in tokensDir,
// one pair of files per credential project.
type FileStore struct {
	secretsDir string
	tokensDir  string
}

func NewFileStore(secretsDir, tokensDir string) repository.ICredentialStore {
	return &FileStore{secretsDir: secretsDir, tokensDir: tokensDir}
}

// LoadAll returns every project found on disk, ordered by id.
// A project whose secret cannot be parsed is skipped and logged.
func (s *FileStore) LoadAll(ctx context.Context) ([]repository.StoredCredential, error) {
	matches, err := filepath.Glob(filepath.Join(s.secretsDir, secretPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list client secrets: %w", err)
	}
	sort.Strings(matches)

	stored := make([]repository.StoredCredential, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), secretPrefix), ".json")
		data, err := os.ReadFile(path)
		if err != nil {
			logger.GetLogger().WithField("error", err).WithField("path", path).Warn("Skipping unreadable client secret")
			continue
		}
		token, err := s.readToken(id)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.GetLogger().WithField("error", err).WithField("project_id", id).Warn("Ignoring unreadable token")
		}
		cred, err := s.build(ctx, id, data, token)
		if err != nil {
			logger.GetLogger().WithField("error", err).WithField("path", path).Warn("Skipping invalid client secret")
			continue
		}
		stored = append(stored, *cred)
	}
	return stored, nil
}

// Add saves new client secret material and returns the registered project
func (s *FileStore) Add(ctx context.Context, material model.CredentialMaterial) (*repository.StoredCredential, error) {
	if len(material.ClientSecret) == 0 {
		return nil, model.NewConfigurationError("client secret required", errNoData)
	}
	projectID, err := projectIDFromSecret(material.ClientSecret)
	if err != nil {
		return nil, model.NewConfigurationError("client secret is not valid JSON", err)
	}
	id := unsafeID.ReplaceAllString(projectID, "-")
	if id == "" {
		id = uuid.NewString()[:8]
	}
	if _, err := os.Stat(s.secretPath(id)); err == nil {
		id = id + "-" + uuid.NewString()[:8]
	}

	cred, err := s.build(ctx, id, material.ClientSecret, material.Token)
	if err != nil {
		return nil, model.NewConfigurationError("client secret rejected", err)
	}
	if material.Name != "" {
		cred.Project.Name = material.Name
	}

	if err := os.MkdirAll(s.secretsDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secrets dir: %w", err)
	}
	if err := os.WriteFile(s.secretPath(id), material.ClientSecret, 0o600); err != nil {
		return nil, fmt.Errorf("failed to save client secret: %w", err)
	}
	if material.Token != nil {
		if err := writeToken(s.tokenPath(id), material.Token); err != nil {
			return nil, err
		}
	}
	logger.GetLogger().WithField("project_id", id).Info("Credential project added")
	return cred, nil
}

func (s *FileStore) build(ctx context.Context, id string, secret []byte, token *oauth2.Token) (*repository.StoredCredential, error) {
	config, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret: %w", err)
	}
	name, _ := projectIDFromSecret(secret)
	if name == "" {
		name = id
	}

	cred := &repository.StoredCredential{
		Project: model.CredentialProject{ID: id, Name: name},
	}
	if token != nil && (token.RefreshToken != "" || token.Valid()) {
		cred.Project.Authenticated = true
		cred.TokenSource = &persistingTokenSource{
			base: config.TokenSource(ctx, token),
			path: s.tokenPath(id),
			last: token.AccessToken,
		}
	}
	return cred, nil
}

func (s *FileStore) readToken(id string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenPath(id))
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

func (s *FileStore) secretPath(id string) string {
	return filepath.Join(s.secretsDir, secretPrefix+id+".json")
}

func (s *FileStore) tokenPath(id string) string {
	return filepath.Join(s.tokensDir, tokenPrefix+id+".json")
}

// projectIDFromSecret reads project_id from an "installed" or "web" client secret
func projectIDFromSecret(secret []byte) (string, error) {
	var raw struct {
		Installed *struct {
			ProjectID string `json:"project_id"`
		} `json:"installed"`
		Web *struct {
			ProjectID string `json:"project_id"`
		} `json:"web"`
	}
	if err := json.Unmarshal(secret, &raw); err != nil {
		return "", err
	}
	switch {
	case raw.Installed != nil:
		return raw.Installed.ProjectID, nil
	case raw.Web != nil:
		return raw.Web.ProjectID, nil
	}
	return "", nil
}

func writeToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create tokens dir: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return os.Rename(tmp, path)
}
