package publisher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelens/orchestrator/internal/domain"
	"github.com/framelens/orchestrator/internal/publisher"
)

func processing(thought string) domain.ProgressEvent {
	return domain.ProgressEvent{
		RunID:   "r1",
		Status:  domain.EventStatusProcessing,
		Stage:   domain.StageVisualLabeling,
		Thought: thought,
	}
}

func TestPublishAssignsGaplessSequence(t *testing.T) {
	p := publisher.New("r1", 16)

	for i := 0; i < 5; i++ {
		err := p.Publish(processing("step"))
		require.NoError(t, err)
	}

	events := p.ReplayFrom(0)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.NotZero(t, ev.Ts)
	}
}

func TestSubscribeReplayThenLiveHasNoGapsOrDuplicates(t *testing.T) {
	p := publisher.New("r1", 16)

	p.Publish(processing("one"))
	p.Publish(processing("two"))

	replay, ch, cancel := p.Subscribe(0, nil)
	defer cancel()
	require.Len(t, replay, 2)

	p.Publish(processing("three"))
	p.Close()

	var live []domain.ProgressEvent
	for ev := range ch {
		live = append(live, ev)
	}
	require.Len(t, live, 1)

	seqs := []int64{replay[0].Seq, replay[1].Seq, live[0].Seq}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}

func TestSubscribeResumesAfterSeq(t *testing.T) {
	p := publisher.New("r1", 16)
	for i := 0; i < 4; i++ {
		p.Publish(processing("step"))
	}

	replay, _, cancel := p.Subscribe(2, nil)
	defer cancel()

	require.Len(t, replay, 2)
	assert.Equal(t, int64(3), replay[0].Seq)
	assert.Equal(t, int64(4), replay[1].Seq)
}

func TestBufferIsBounded(t *testing.T) {
	p := publisher.New("r1", 2)
	for i := 0; i < 5; i++ {
		p.Publish(processing("step"))
	}

	events := p.ReplayFrom(0)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].Seq)
	assert.Equal(t, int64(5), events[1].Seq)
}

func TestPublishAfterCloseFails(t *testing.T) {
	p := publisher.New("r1", 16)
	p.Publish(processing("one"))
	p.Close()

	err := p.Publish(processing("two"))
	assert.ErrorIs(t, err, publisher.ErrClosed)

	// The buffer stays readable for replay after close.
	assert.Len(t, p.ReplayFrom(0), 1)
}

func TestCloseEndsSubscriberChannels(t *testing.T) {
	p := publisher.New("r1", 16)
	_, ch, cancel := p.Subscribe(0, nil)
	defer cancel()

	p.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed")
	}
}

func TestConnectedBeforeAnyAttach(t *testing.T) {
	p := publisher.New("r1", 16)
	assert.True(t, p.Connected())
}

func TestConnectedFollowsProbes(t *testing.T) {
	p := publisher.New("r1", 16)

	alive := true
	_, _, cancel := p.Subscribe(0, func() bool { return alive })
	assert.True(t, p.Connected())

	alive = false
	assert.False(t, p.Connected())

	// A detached transport with no replacement counts as gone.
	alive = true
	cancel()
	assert.False(t, p.Connected())
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	p := publisher.New("r1", 16)
	p.Publish(processing("one"))
	p.Close()

	replay, ch, cancel := p.Subscribe(0, nil)
	defer cancel()

	assert.Len(t, replay, 1)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestExpiredSince(t *testing.T) {
	p := publisher.New("r1", 16)
	assert.False(t, p.ExpiredSince(time.Now()))

	p.Close()
	assert.False(t, p.ExpiredSince(time.Now().Add(-time.Minute)))
	assert.True(t, p.ExpiredSince(time.Now().Add(time.Minute)))
}
