package credentials

import (
	"sync"

	"autouploader/infrastructure/logger"

	"golang.org/x/oauth2"
)

// persistingTokenSource writes refreshed tokens back to disk so a restart
// does not need a new consent.
type persistingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		if err := writeToken(p.path, token); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed to persist refreshed token")
		} else {
			p.last = token.AccessToken
		}
	}
	return token, nil
}
