package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	// Long intervals keep heartbeats and sweeps out of targeted-delivery
	// assertions.
	b := NewBus(WithHeartbeat(time.Hour), WithSweepInterval(time.Hour))
	go b.Run()
	t.Cleanup(b.Shutdown)
	return b
}

func TestSubscribeDeliversConnectedEvent(t *testing.T) {
	bus := newTestBus(t)
	userID := uuid.New()

	sub := bus.Subscribe(userID, "user")
	defer sub.Close()

	ev := receive(t, sub)
	assert.Equal(t, TypeConnected, ev.Type)
	assert.Equal(t, userID.String(), ev.UserID)
	assert.Equal(t, "user", ev.UserRole)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestRoleUpdatedTargetsMatchingRoleOnly(t *testing.T) {
	bus := newTestBus(t)

	supervisor := bus.Subscribe(uuid.New(), "supervisor")
	defer supervisor.Close()
	manager := bus.Subscribe(uuid.New(), "property_manager")
	defer manager.Close()
	receive(t, supervisor) // connected
	receive(t, manager)    // connected

	bus.Publish(Event{
		Type:            TypeRoleUpdated,
		Message:         "permissions for role supervisor changed",
		AffectedRole:    "supervisor",
		Action:          "granted",
		RequiresRefresh: true,
	})

	ev := receive(t, supervisor)
	assert.Equal(t, TypeRoleUpdated, ev.Type)
	assert.True(t, ev.RequiresRefresh)

	select {
	case ev := <-manager.C:
		t.Fatalf("manager should not receive role_updated for supervisor, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUserUpdatedTargetsOneUser(t *testing.T) {
	bus := newTestBus(t)
	target := uuid.New()

	targetSub := bus.Subscribe(target, "user")
	defer targetSub.Close()
	otherSub := bus.Subscribe(uuid.New(), "user")
	defer otherSub.Close()
	receive(t, targetSub)
	receive(t, otherSub)

	bus.Publish(Event{Type: TypeUserUpdated, UserID: target.String(), Action: "granted"})

	ev := receive(t, targetSub)
	assert.Equal(t, TypeUserUpdated, ev.Type)

	select {
	case ev := <-otherSub.C:
		t.Fatalf("other user should not receive the event, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPermissionUpdatedBroadcasts(t *testing.T) {
	bus := newTestBus(t)

	a := bus.Subscribe(uuid.New(), "user")
	defer a.Close()
	b := bus.Subscribe(uuid.New(), "supervisor")
	defer b.Close()
	receive(t, a)
	receive(t, b)

	bus.Publish(Event{Type: TypePermissionUpdated, Message: "matrix reloaded"})

	assert.Equal(t, TypePermissionUpdated, receive(t, a).Type)
	assert.Equal(t, TypePermissionUpdated, receive(t, b).Type)
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Subscribe(uuid.New(), "user")
	defer sub.Close()
	receive(t, sub)

	bus.Publish(Event{Type: TypePermissionUpdated})
	assert.False(t, receive(t, sub).Timestamp.IsZero())
}

func TestConnectionCountTracksSubscriptions(t *testing.T) {
	bus := newTestBus(t)

	sub := bus.Subscribe(uuid.New(), "user")
	receive(t, sub)
	assert.Eventually(t, func() bool { return bus.ConnectionCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	sub.Close()
	assert.Eventually(t, func() bool { return bus.ConnectionCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesSubscriberChannels(t *testing.T) {
	bus := NewBus(WithHeartbeat(time.Hour), WithSweepInterval(time.Hour))
	go bus.Run()

	sub := bus.Subscribe(uuid.New(), "user")
	receive(t, sub)

	bus.Shutdown()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-sub.C:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberIsPruned(t *testing.T) {
	bus := newTestBus(t)

	slow := bus.Subscribe(uuid.New(), "user")
	// Never drain: the connected event plus the buffer fill the channel.
	for i := 0; i < 20; i++ {
		bus.Publish(Event{Type: TypePermissionUpdated})
	}

	assert.Eventually(t, func() bool { return bus.ConnectionCount() == 0 },
		2*time.Second, 10*time.Millisecond)
	_ = slow
}
