package invitation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seat-booking-companion/internal/backend"
)

type fakeAPI struct {
	mu          sync.Mutex
	fetches     int
	invitations []backend.Invitation
	err         error
	accepted    []int64
	declined    []int64
	respondErr  error
}

func (f *fakeAPI) UpcomingInvitations(ctx context.Context) ([]backend.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return append([]backend.Invitation(nil), f.invitations...), nil
}

func (f *fakeAPI) AcceptInvitation(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, id)
	return f.respondErr
}

func (f *fakeAPI) DeclineInvitation(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declined = append(f.declined, id)
	return f.respondErr
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeBookings struct{ loads int }

func (f *fakeBookings) Load(ctx context.Context) error {
	f.loads++
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
	to   []int64
}

func (f *fakeNotifier) NotifyInvitation(userID int64, inv backend.Invitation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, inv.ID)
	f.to = append(f.to, userID)
}

type fixedUser int64

func (u fixedUser) CurrentUserID() int64 { return int64(u) }
func (u fixedUser) Authenticated() bool  { return u != 0 }

// switchUser can be signed out while the poller runs.
type switchUser struct{ in atomic.Bool }

func (u *switchUser) CurrentUserID() int64 {
	if u.in.Load() {
		return 7
	}
	return 0
}
func (u *switchUser) Authenticated() bool { return u.in.Load() }

func TestPoller_StartIsIdempotent(t *testing.T) {
	api := &fakeAPI{}
	vis := NewVisibility()
	p := NewPoller(api, nil, fixedUser(7), vis, nil, time.Hour)

	p.Start(context.Background())
	p.Start(context.Background())
	p.Start(context.Background())

	assert.True(t, p.Polling())
	assert.Equal(t, 1, vis.Listeners(), "one visibility listener regardless of Start calls")
	require.Eventually(t, func() bool { return api.fetchCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, api.fetchCount(), "Start fetches once immediately")

	p.Stop()
	assert.False(t, p.Polling())
	assert.Equal(t, 0, vis.Listeners())
	p.Stop()

	p.Start(context.Background())
	assert.Equal(t, 1, vis.Listeners())
	p.Stop()
}

func TestPoller_TicksOnlyWhileVisible(t *testing.T) {
	api := &fakeAPI{}
	vis := NewVisibility()
	vis.Set(false)
	p := NewPoller(api, nil, fixedUser(7), vis, nil, 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(t, func() bool { return api.fetchCount() == 1 }, time.Second, time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, api.fetchCount(), "hidden UI suppresses periodic fetches")

	vis.Set(true)
	require.Eventually(t, func() bool { return api.fetchCount() >= 3 }, time.Second, time.Millisecond)
}

func TestPoller_SignedOutSkipsTicks(t *testing.T) {
	api := &fakeAPI{}
	user := &switchUser{}
	user.in.Store(true)
	p := NewPoller(api, nil, user, NewVisibility(), nil, 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(t, func() bool { return api.fetchCount() >= 2 }, time.Second, time.Millisecond)

	user.in.Store(false)
	time.Sleep(30 * time.Millisecond)
	stalled := api.fetchCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stalled, api.fetchCount(), "no requests while signed out")
	assert.True(t, p.Polling())

	user.in.Store(true)
	require.Eventually(t, func() bool { return api.fetchCount() > stalled }, time.Second, time.Millisecond)
}

func TestPoller_BecomingVisibleFetchesImmediately(t *testing.T) {
	api := &fakeAPI{}
	vis := NewVisibility()
	p := NewPoller(api, nil, fixedUser(7), vis, nil, time.Hour)

	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(t, func() bool { return api.fetchCount() == 1 }, time.Second, time.Millisecond)

	vis.Set(false)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, api.fetchCount(), "hiding does not fetch")

	vis.Set(true)
	require.Eventually(t, func() bool { return api.fetchCount() == 2 }, time.Second, time.Millisecond)

	vis.Set(true)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 2, api.fetchCount(), "only a hidden to visible transition fetches")
}

func TestPoller_NotifiesNewPendingOnce(t *testing.T) {
	api := &fakeAPI{invitations: []backend.Invitation{
		{ID: 1, Status: backend.InvitationPending},
		{ID: 2, Status: backend.InvitationAccepted},
	}}
	n := &fakeNotifier{}
	p := NewPoller(api, nil, fixedUser(7), nil, nil, time.Hour)
	p.SetNotifier(n)

	require.NoError(t, p.Fetch(context.Background()))
	require.NoError(t, p.Fetch(context.Background()))

	api.invitations = append(api.invitations, backend.Invitation{ID: 3})
	require.NoError(t, p.Fetch(context.Background()))

	assert.Equal(t, []int64{1, 3}, n.sent)
	assert.Equal(t, []int64{7, 7}, n.to)
	assert.Len(t, p.State().Invitations, 3)
}

func TestPoller_FetchFailureKeepsList(t *testing.T) {
	api := &fakeAPI{invitations: []backend.Invitation{{ID: 1}}}
	p := NewPoller(api, nil, fixedUser(7), nil, nil, time.Hour)
	require.NoError(t, p.Fetch(context.Background()))

	api.err = errors.New("down")
	require.Error(t, p.Fetch(context.Background()))
	st := p.State()
	assert.Len(t, st.Invitations, 1)
	assert.Contains(t, st.Error, "获取邀请失败")
}

func TestPoller_AcceptAndDecline(t *testing.T) {
	api := &fakeAPI{invitations: []backend.Invitation{{ID: 5}}}
	bookings := &fakeBookings{}
	p := NewPoller(api, bookings, fixedUser(7), nil, nil, time.Hour)

	require.NoError(t, p.Accept(context.Background(), 5))
	assert.Equal(t, []int64{5}, api.accepted)
	assert.Equal(t, 1, api.fetchCount(), "accept refreshes invitations")
	assert.Equal(t, 1, bookings.loads, "accept refreshes bookings")

	require.NoError(t, p.Decline(context.Background(), 6))
	assert.Equal(t, []int64{6}, api.declined)
	assert.Equal(t, 2, api.fetchCount())
	assert.Equal(t, 1, bookings.loads, "decline leaves bookings alone")

	api.respondErr = errors.New("gone")
	require.Error(t, p.Accept(context.Background(), 7))
	assert.Equal(t, 2, api.fetchCount())
	assert.Contains(t, p.State().Error, "接受邀请失败")
}

func TestVisibility(t *testing.T) {
	v := NewVisibility()
	assert.True(t, v.Visible())

	var got []bool
	unsubscribe := v.Subscribe(func(visible bool) { got = append(got, visible) })
	v.Set(true)
	v.Set(false)
	v.Set(false)
	v.Set(true)
	assert.Equal(t, []bool{false, true}, got)

	unsubscribe()
	unsubscribe()
	v.Set(false)
	assert.Equal(t, []bool{false, true}, got)
	assert.Equal(t, 0, v.Listeners())
}
