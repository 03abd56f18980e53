package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autouploader/domain/model"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"

	"golang.org/x/oauth2"
)

// QuotaResetPolicy estimates when an exhausted project can upload again.
type QuotaResetPolicy interface {
	ResetAt(exceededAt time.Time) time.Time
}

// DurationResetPolicy assumes the quota comes back a fixed window after it ran out.
type DurationResetPolicy struct {
	Window time.Duration
}

func (p DurationResetPolicy) ResetAt(exceededAt time.Time) time.Time {
	return exceededAt.Add(p.Window)
}

// PacificMidnightResetPolicy follows the platform's daily boundary at
// midnight America/Los_Angeles.
type PacificMidnightResetPolicy struct {
	Location *time.Location
}

func (p PacificMidnightResetPolicy) ResetAt(exceededAt time.Time) time.Time {
	loc := p.Location
	if loc == nil {
		loc = pacificLocation()
	}
	local := exceededAt.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.UTC()
}

func pacificLocation() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}

// NewQuotaResetPolicy maps the configured policy name to an implementation.
// Unknown names fall back to the fixed window.
func NewQuotaResetPolicy(name string, window time.Duration) QuotaResetPolicy {
	if name == "pacific_midnight" {
		return PacificMidnightResetPolicy{Location: pacificLocation()}
	}
	return DurationResetPolicy{Window: window}
}

type poolEntry struct {
	project     model.CredentialProject
	tokenSource oauth2.TokenSource
}

func (e *poolEntry) eligible() bool {
	return e.project.Authenticated && !e.project.QuotaExceeded
}

// ICredentialPool is what the scheduler needs from the pool
type ICredentialPool interface {
	Active() *model.Credential
	MarkQuotaExceeded(ctx context.Context, projectID string)
	MarkAuthExpired(projectID string)
	NextResetIn() time.Duration
}

// CredentialPool holds every configured project and decides which one uploads.
// At most one project is active at a time.
type CredentialPool struct {
	mu           sync.Mutex
	entries      []*poolEntry
	activeID     string
	limitReached bool
	limitResetAt *time.Time

	policy QuotaResetPolicy
	cache  repository.IQuotaStateCache
	now    func() time.Time
}

func NewCredentialPool(policy QuotaResetPolicy, cache repository.IQuotaStateCache) *CredentialPool {
	if policy == nil {
		policy = DurationResetPolicy{Window: 24 * time.Hour}
	}
	return &CredentialPool{policy: policy, cache: cache, now: time.Now}
}

// WithClock replaces the time source (fluent)
func (p *CredentialPool) WithClock(now func() time.Time) *CredentialPool {
	p.now = now
	return p
}

// Add registers a project, or replaces its token source when the id is known.
// A quota state persisted by an earlier run is restored when still in force.
func (p *CredentialPool) Add(ctx context.Context, project model.CredentialProject, ts oauth2.TokenSource) {
	var restored *model.QuotaState
	if p.cache != nil {
		state, err := p.cache.Load(ctx, project.ID)
		if err != nil {
			logger.GetLogger().WithField("project_id", project.ID).WithField("error", err).Warn("failed to load quota state")
		}
		restored = state
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	project.Active = false
	if restored != nil && restored.QuotaResetAt.After(p.now()) {
		resetAt := restored.QuotaResetAt
		project.QuotaExceeded = true
		project.QuotaResetAt = &resetAt
	}

	for _, e := range p.entries {
		if e.project.ID == project.ID {
			e.project.Name = project.Name
			e.project.Authenticated = project.Authenticated
			e.tokenSource = ts
			return
		}
	}
	p.entries = append(p.entries, &poolEntry{project: project, tokenSource: ts})
}

// Active returns the uploading credential, activating the first eligible
// project when none is active. Nil means no project can upload right now.
func (p *CredentialPool) Active() *model.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshLocked()
	if e := p.findLocked(p.activeID); e != nil && e.eligible() {
		return credentialOf(e)
	}
	for _, e := range p.entries {
		if e.eligible() {
			p.activeID = e.project.ID
			return credentialOf(e)
		}
	}
	p.activeID = ""
	return nil
}

// ActiveID reports the active project id without activating anything.
func (p *CredentialPool) ActiveID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeID
}

// MarkQuotaExceeded flags the project and rotates away from it when it was
// active. With nothing left to rotate to, the pool reports limit reached.
func (p *CredentialPool) MarkQuotaExceeded(ctx context.Context, projectID string) {
	p.mu.Lock()
	e := p.findLocked(projectID)
	if e == nil {
		p.mu.Unlock()
		return
	}
	now := p.now()
	resetAt := p.policy.ResetAt(now)
	e.project.QuotaExceeded = true
	e.project.QuotaResetAt = &resetAt

	next := ""
	if p.activeID == projectID || p.activeID == "" {
		next = p.rotateLocked(projectID)
	}
	if next == "" && !p.anyEligibleLocked() {
		p.limitReached = true
		p.limitResetAt = p.soonestResetLocked()
	}
	p.mu.Unlock()

	log := logger.GetLogger().WithFields(map[string]interface{}{
		"project_id": projectID,
		"reset_at":   resetAt,
		"next":       next,
	})
	if next == "" {
		log.Warn("Upload quota exceeded, no other project available")
	} else {
		log.Info("Upload quota exceeded, rotated credential project")
	}

	if p.cache != nil {
		if err := p.cache.Save(ctx, model.QuotaState{ProjectID: projectID, QuotaResetAt: resetAt}); err != nil {
			logger.GetLogger().WithField("project_id", projectID).WithField("error", err).Warn("failed to persist quota state")
		}
	}
}

// MarkAuthExpired flags the project as needing re-authentication and
// rotates like MarkQuotaExceeded, without touching the limit status.
func (p *CredentialPool) MarkAuthExpired(projectID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.findLocked(projectID)
	if e == nil {
		return
	}
	e.project.Authenticated = false
	if p.activeID == projectID {
		next := p.rotateLocked(projectID)
		logger.GetLogger().WithField("project_id", projectID).WithField("next", next).Warn("Credential project needs re-authentication")
	}
}

// RotateManually activates the given project on operator request, clearing
// any quota flag it carries and the pool-wide limit.
func (p *CredentialPool) RotateManually(ctx context.Context, projectID string) error {
	p.mu.Lock()
	e := p.findLocked(projectID)
	if e == nil {
		p.mu.Unlock()
		return &model.ConfigurationError{Reason: fmt.Sprintf("unknown project %q", projectID), Err: model.ErrUnknownProject}
	}
	if !e.project.Authenticated {
		p.mu.Unlock()
		return &model.ConfigurationError{Reason: fmt.Sprintf("project %q needs authentication", projectID), Err: model.ErrProjectNeedsAuth}
	}
	hadQuotaFlag := e.project.QuotaExceeded
	e.project.QuotaExceeded = false
	e.project.QuotaResetAt = nil
	p.activeID = projectID
	p.limitReached = false
	p.limitResetAt = nil
	p.mu.Unlock()

	logger.GetLogger().WithField("project_id", projectID).Info("Credential project selected")
	if hadQuotaFlag && p.cache != nil {
		if err := p.cache.Clear(ctx, projectID); err != nil {
			logger.GetLogger().WithField("project_id", projectID).WithField("error", err).Warn("failed to clear quota state")
		}
	}
	return nil
}

// SelectChannel pins the channel uploads of the active project go to.
func (p *CredentialPool) SelectChannel(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.findLocked(p.activeID)
	if e == nil {
		return model.ErrNoActiveCredential
	}
	e.project.SelectedChannelID = channelID
	return nil
}

// List returns copies of all projects in insertion order.
func (p *CredentialPool) List() []model.CredentialProject {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshLocked()
	out := make([]model.CredentialProject, 0, len(p.entries))
	for _, e := range p.entries {
		c := e.project
		c.Active = e.project.ID == p.activeID
		if e.project.QuotaResetAt != nil {
			t := *e.project.QuotaResetAt
			c.QuotaResetAt = &t
		}
		out = append(out, c)
	}
	return out
}

// LimitStatus reports whether every project is exhausted and when the
// earliest one is expected back.
func (p *CredentialPool) LimitStatus() (bool, *time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshLocked()
	if !p.limitReached || p.limitResetAt == nil {
		return p.limitReached, nil
	}
	t := *p.limitResetAt
	return true, &t
}

// NextResetIn is the wait until the soonest quota reset, zero when no
// project is exhausted.
func (p *CredentialPool) NextResetIn() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	soonest := p.soonestResetLocked()
	if soonest == nil {
		return 0
	}
	d := soonest.Sub(p.now())
	if d < 0 {
		return 0
	}
	return d
}

func (p *CredentialPool) refreshLocked() {
	now := p.now()
	for _, e := range p.entries {
		if e.project.QuotaExceeded && e.project.QuotaResetAt != nil && !now.Before(*e.project.QuotaResetAt) {
			e.project.QuotaExceeded = false
			e.project.QuotaResetAt = nil
		}
	}
	if p.limitReached && p.anyEligibleLocked() {
		p.limitReached = false
		p.limitResetAt = nil
	}
}

// rotateLocked activates the next eligible project after from, wrapping.
func (p *CredentialPool) rotateLocked(from string) string {
	start := 0
	for i, e := range p.entries {
		if e.project.ID == from {
			start = i + 1
			break
		}
	}
	n := len(p.entries)
	for i := 0; i < n; i++ {
		e := p.entries[(start+i)%n]
		if e.project.ID != from && e.eligible() {
			p.activeID = e.project.ID
			return p.activeID
		}
	}
	p.activeID = ""
	return ""
}

func (p *CredentialPool) anyEligibleLocked() bool {
	for _, e := range p.entries {
		if e.eligible() {
			return true
		}
	}
	return false
}

func (p *CredentialPool) soonestResetLocked() *time.Time {
	var soonest *time.Time
	for _, e := range p.entries {
		if !e.project.QuotaExceeded || e.project.QuotaResetAt == nil {
			continue
		}
		if soonest == nil || e.project.QuotaResetAt.Before(*soonest) {
			t := *e.project.QuotaResetAt
			soonest = &t
		}
	}
	return soonest
}

func (p *CredentialPool) findLocked(id string) *poolEntry {
	if id == "" {
		return nil
	}
	for _, e := range p.entries {
		if e.project.ID == id {
			return e
		}
	}
	return nil
}

func credentialOf(e *poolEntry) *model.Credential {
	return &model.Credential{
		ProjectID:   e.project.ID,
		ChannelID:   e.project.SelectedChannelID,
		TokenSource: e.tokenSource,
	}
}
