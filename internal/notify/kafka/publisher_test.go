package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"smpd/internal/notify"
	"smpd/internal/storage/storagetest"
	"smpd/pkg/platform/circuit"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	calls   int
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

// blockingProducer waits for the produce deadline, like a client whose
// brokers are unreachable.
type blockingProducer struct {
	mu    sync.Mutex
	calls int
}

func (b *blockingProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-ctx.Done()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: ctx.Err()})
	}
	return results
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type PublisherSuite struct {
	suite.Suite
	producer  *fakeProducer
	clock     *fakeClock
	publisher *Publisher
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.producer = &fakeProducer{}
	s.clock = &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s.publisher = New(s.producer, "smp-changes", WithBreaker(circuit.New("kafka",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(s.clock.now),
	)))
}

func (s *PublisherSuite) TestRecordIsKeyedByServiceGroup() {
	sg := storagetest.ServiceGroup("kafka", "alice")
	event := notify.ServiceGroupEvent(notify.ServiceGroupCreated, sg)

	s.Require().NoError(s.publisher.Handle(context.Background(), event))
	s.Require().Len(s.producer.records, 1)
	record := s.producer.records[0]
	s.Equal("smp-changes", record.Topic)
	s.Equal(sg.Key, string(record.Key))
	s.Equal("event_type", record.Headers[0].Key)
	s.Equal(string(notify.ServiceGroupCreated), string(record.Headers[0].Value))

	var msg Message
	s.Require().NoError(json.Unmarshal(record.Value, &msg))
	s.Equal(event.ID.String(), msg.ID)
	s.Equal(notify.ServiceGroupCreated, msg.Type)
	s.Require().NotNil(msg.ServiceGroup)
	s.Equal("alice", msg.ServiceGroup.OwnerID)
	s.Nil(msg.Redirect)
}

func (s *PublisherSuite) TestFailuresOpenTheBreaker() {
	ctx := context.Background()
	event := notify.ServiceGroupEvent(notify.ServiceGroupDeleted, storagetest.ServiceGroup("kafka", "alice"))
	s.producer.err = errors.New("broker unavailable")

	s.Error(s.publisher.Handle(ctx, event))
	s.True(s.publisher.Healthy())
	s.Error(s.publisher.Handle(ctx, event))
	s.False(s.publisher.Healthy())

	s.producer.err = nil
	s.ErrorIs(s.publisher.Handle(ctx, event), ErrCircuitOpen)
	s.Equal(2, s.producer.calls, "open breaker does not reach the brokers")

	s.clock.advance(time.Minute)
	s.NoError(s.publisher.Handle(ctx, event))
	s.True(s.publisher.Healthy())
	s.Equal(3, s.producer.calls)
}

func (s *PublisherSuite) TestFailedTrialKeepsTheBreakerOpen() {
	ctx := context.Background()
	event := notify.ServiceGroupEvent(notify.ServiceGroupDeleted, storagetest.ServiceGroup("kafka", "alice"))
	s.producer.err = errors.New("broker unavailable")
	s.Error(s.publisher.Handle(ctx, event))
	s.Error(s.publisher.Handle(ctx, event))

	s.clock.advance(time.Minute)
	err := s.publisher.Handle(ctx, event)
	s.Error(err)
	s.NotErrorIs(err, ErrCircuitOpen, "the trial call reaches the brokers")
	s.Equal(3, s.producer.calls)

	s.ErrorIs(s.publisher.Handle(ctx, event), ErrCircuitOpen)
	s.False(s.publisher.Healthy())
}

func (s *PublisherSuite) TestOutageDoesNotStallPublishing() {
	ctx := context.Background()
	producer := &blockingProducer{}
	publisher := New(producer, "smp-changes",
		WithTimeout(50*time.Millisecond),
		WithBreaker(circuit.New("kafka", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)
	event := notify.ServiceGroupEvent(notify.ServiceGroupDeleted, storagetest.ServiceGroup("kafka", "alice"))

	s.Error(publisher.Handle(ctx, event))
	s.Error(publisher.Handle(ctx, event))
	s.False(publisher.Healthy())

	start := time.Now()
	for range 5 {
		s.ErrorIs(publisher.Handle(ctx, event), ErrCircuitOpen)
	}
	s.Less(time.Since(start), 50*time.Millisecond, "open breaker fails fast")
	s.Equal(2, producer.calls)
}
