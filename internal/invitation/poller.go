package invitation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/cache"
	"seat-booking-companion/internal/gateway"
)

// API is the slice of the backend the poller needs.
type API interface {
	UpcomingInvitations(ctx context.Context) ([]backend.Invitation, error)
	AcceptInvitation(ctx context.Context, id int64) error
	DeclineInvitation(ctx context.Context, id int64) error
}

// BookingLoader reloads the booking list after an invitation is accepted.
type BookingLoader interface {
	Load(ctx context.Context) error
}

// Notifier is told about pending invitations seen for the first time.
type Notifier interface {
	NotifyInvitation(userID int64, inv backend.Invitation)
}

// UserSource tells the poller who is signed in.
type UserSource interface {
	CurrentUserID() int64
	Authenticated() bool
}

// State is the invitation list as the UI shows it.
type State struct {
	Invitations []backend.Invitation `json:"invitations"`
	Polling     bool                 `json:"polling"`
	Loading     bool                 `json:"loading"`
	Error       string               `json:"error,omitempty"`
}

// Poller keeps the upcoming partner invitations fresh while the UI is visible.
type Poller struct {
	api        API
	bookings   BookingLoader
	users      UserSource
	visibility *Visibility
	cache      *cache.Manager
	interval   time.Duration

	mu          sync.Mutex
	notifier    Notifier
	invitations []backend.Invitation
	seen        map[int64]bool
	loading     bool
	err         string

	// lifecycle, guarded by runMu
	runMu       sync.Mutex
	running     bool
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	wake        chan struct{}
}

// NewPoller creates a stopped poller. c may be nil.
func NewPoller(api API, bookings BookingLoader, users UserSource, vis *Visibility, c *cache.Manager, interval time.Duration) *Poller {
	if vis == nil {
		vis = NewVisibility()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		api:        api,
		bookings:   bookings,
		users:      users,
		visibility: vis,
		cache:      c,
		interval:   interval,
		seen:       make(map[int64]bool),
		wake:       make(chan struct{}, 1),
	}
}

// SetNotifier installs the notifier for new pending invitations.
func (p *Poller) SetNotifier(n Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = n
}

// Visibility returns the visibility source the poller listens to.
func (p *Poller) Visibility() *Visibility {
	return p.visibility
}

// Restore loads the last invitation list from the cache so invitations that were
// already announced are not announced again after a restart.
func (p *Poller) Restore(ctx context.Context) {
	if p.cache == nil {
		return
	}
	var cached []backend.Invitation
	if !p.cache.Get(ctx, cache.KeyUserInvitations, &cached) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invitations = cached
	for _, inv := range cached {
		p.seen[inv.ID] = true
	}
}

// State returns a copy of the poller state.
func (p *Poller) State() State {
	p.runMu.Lock()
	polling := p.running
	p.runMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Invitations: append([]backend.Invitation(nil), p.invitations...),
		Polling:     polling,
		Loading:     p.loading,
		Error:       p.err,
	}
}

// Polling reports whether the poller is running.
func (p *Poller) Polling() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

// Start begins polling: one fetch right away, then one per interval while the UI is
// visible, plus one whenever the UI becomes visible again. Calling Start on a running
// poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running {
		return
	}

	select {
	case <-p.wake:
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.unsubscribe = p.visibility.Subscribe(func(visible bool) {
		if !visible {
			return
		}
		select {
		case p.wake <- struct{}{}:
		default:
		}
	})

	log.Infof("Starting invitation poller (every %s)", p.interval)
	go p.run(ctx, p.done)
}

// Stop ends polling and removes the visibility listener. It waits for an in-flight
// fetch to return.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	p.unsubscribe()
	<-p.done
	p.running = false
	p.cancel = nil
	p.unsubscribe = nil
	log.Info("Invitation poller stopped")
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.fetchLogged(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if p.visibility.Visible() {
				p.fetchLogged(ctx)
			}
			timer.Reset(p.interval)
		case <-p.wake:
			p.fetchLogged(ctx)
		}
	}
}

func (p *Poller) fetchLogged(ctx context.Context) {
	// Signed out: polling would only trigger re-authentication on every tick.
	if p.users != nil && !p.users.Authenticated() {
		return
	}
	if err := p.Fetch(ctx); err != nil && ctx.Err() == nil {
		log.Warnf("Invitation poll failed: %v", err)
	}
}

// Fetch loads the upcoming invitations and announces pending ones not seen before.
func (p *Poller) Fetch(ctx context.Context) error {
	p.mu.Lock()
	p.loading = true
	p.mu.Unlock()

	invs, err := p.api.UpcomingInvitations(ctx)

	p.mu.Lock()
	p.loading = false
	if err != nil {
		p.err = "获取邀请失败: " + gateway.Message(err)
		p.mu.Unlock()
		return err
	}
	p.err = ""
	p.invitations = invs

	var fresh []backend.Invitation
	for _, inv := range invs {
		if p.seen[inv.ID] {
			continue
		}
		p.seen[inv.ID] = true
		if inv.Status == "" || inv.Status == backend.InvitationPending {
			fresh = append(fresh, inv)
		}
	}
	notifier := p.notifier
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Set(ctx, cache.KeyUserInvitations, invs, cache.TTLShort); err != nil {
			log.Warnf("Failed to cache invitations: %v", err)
		}
	}

	if notifier != nil && len(fresh) > 0 {
		me := int64(0)
		if p.users != nil {
			me = p.users.CurrentUserID()
		}
		log.Infof("%d new pending invitation(s)", len(fresh))
		for _, inv := range fresh {
			notifier.NotifyInvitation(me, inv)
		}
	}
	return nil
}

// Accept accepts an invitation, then refreshes the invitations and the bookings.
func (p *Poller) Accept(ctx context.Context, id int64) error {
	if err := p.api.AcceptInvitation(ctx, id); err != nil {
		p.setError("接受邀请失败: ", err)
		return err
	}
	log.Infof("Accepted invitation %d", id)
	p.refreshAfterResponse(ctx)
	if p.bookings != nil {
		if err := p.bookings.Load(ctx); err != nil {
			log.Warnf("Failed to reload bookings after accepting invitation %d: %v", id, err)
		}
	}
	return nil
}

// Decline declines an invitation, then refreshes the invitations.
func (p *Poller) Decline(ctx context.Context, id int64) error {
	if err := p.api.DeclineInvitation(ctx, id); err != nil {
		p.setError("拒绝邀请失败: ", err)
		return err
	}
	log.Infof("Declined invitation %d", id)
	p.refreshAfterResponse(ctx)
	return nil
}

func (p *Poller) refreshAfterResponse(ctx context.Context) {
	if p.cache != nil {
		p.cache.Delete(ctx, cache.KeyUserInvitations)
	}
	if err := p.Fetch(ctx); err != nil {
		log.Warnf("Failed to refresh invitations: %v", err)
	}
}

func (p *Poller) setError(prefix string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = prefix + gateway.Message(err)
	log.Warnf("%s%v", prefix, err)
}

// Reset forgets the invitation list, used on sign-out.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invitations = nil
	p.seen = make(map[int64]bool)
	p.err = ""
}
