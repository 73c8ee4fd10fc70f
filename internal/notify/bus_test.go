package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smpd/internal/domain"
	"smpd/internal/platform/metrics"
)

func TestPublishRunsSubscribersInOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		bus.Subscribe(name, func(context.Context, Event) error {
			order = append(order, name)
			return nil
		})
	}

	bus.Publish(context.Background(), ServiceGroupEvent(ServiceGroupCreated, domain.ServiceGroup{Key: "k"}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestFailingSubscriberDoesNotStopDelivery(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	bus := NewBus(WithMetrics(m))
	rec := &Recorder{}

	bus.Subscribe("broken", func(context.Context, Event) error { return errors.New("boom") })
	bus.Subscribe("panics", func(context.Context, Event) error { panic("kaboom") })
	bus.Subscribe("recorder", rec.Handle)

	bus.Publish(context.Background(), ServiceGroupEvent(ServiceGroupDeleted, domain.ServiceGroup{Key: "k"}))

	require.Len(t, rec.Events(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationFailures.WithLabelValues("broken", string(ServiceGroupDeleted))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationFailures.WithLabelValues("panics", string(ServiceGroupDeleted))))
}

func TestListenerDispatchesByType(t *testing.T) {
	var created domain.ServiceGroup
	var deletedKey string
	var settings domain.Settings
	l := Listener{
		OnServiceGroupCreated: func(_ context.Context, sg domain.ServiceGroup) error { created = sg; return nil },
		OnServiceGroupDeleted: func(_ context.Context, key string) error { deletedKey = key; return nil },
		OnSettingsChanged:     func(_ context.Context, s domain.Settings) error { settings = s; return nil },
	}
	h := l.Handler()
	ctx := context.Background()

	require.NoError(t, h(ctx, ServiceGroupEvent(ServiceGroupCreated, domain.ServiceGroup{Key: "a", OwnerID: "alice"})))
	require.NoError(t, h(ctx, ServiceGroupEvent(ServiceGroupDeleted, domain.ServiceGroup{Key: "b"})))
	require.NoError(t, h(ctx, SettingsEvent(domain.Settings{SMLEnabled: true})))
	// no callback registered: ignored
	require.NoError(t, h(ctx, RedirectEvent(RedirectCreated, domain.Redirect{ServiceGroupKey: "a"})))

	assert.Equal(t, "alice", created.OwnerID)
	assert.Equal(t, "b", deletedKey)
	assert.True(t, settings.SMLEnabled)
}

func TestPublishOnNilBus(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(context.Background(), SettingsEvent(domain.Settings{})) })
}
