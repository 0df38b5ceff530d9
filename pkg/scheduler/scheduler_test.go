package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
)

func TestNormalizeSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"@every 6h", "@every 6h", false},
		{"@daily", "@daily", false},
		{"0 */6 * * *", "0 */6 * * *", false},
		{"6h", "@every 6h0m0s", false},
		{" 90m ", "@every 1h30m0s", false},
		{"10s", "", true},
		{"", "", true},
		{"often", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeSpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.ScheduleConfig{Interval: "@every 1h", Timezone: "Mars/Olympus"}, func(context.Context) {}, nil)
	assert.Error(t, err)

	_, err = New(config.ScheduleConfig{Interval: "61 * * * *"}, func(context.Context) {}, nil)
	assert.Error(t, err)
}

func TestRunOnStart(t *testing.T) {
	var calls int32
	done := make(chan struct{}, 1)
	s, err := New(config.ScheduleConfig{Interval: "@every 1h", RunOnStart: true}, func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), 5*time.Second)
}

func TestOverlappingInvocationsAreSkipped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32

	tl := logger.NewTestLogger()
	s, err := New(config.ScheduleConfig{Interval: "@every 1h"}, func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
	}, tl)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	go s.invoke()
	<-started
	s.invoke()

	close(release)
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, tl.HasMessage("Previous run still in progress, skipping"))
}

func TestStopCancelsRunningJob(t *testing.T) {
	cancelled := make(chan struct{})
	s, err := New(config.ScheduleConfig{Interval: "@every 1h", RunOnStart: true}, func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("Stop returned before the job observed cancellation")
	}
	assert.True(t, s.Next().IsZero())
}

func TestRunBlocksUntilContextDone(t *testing.T) {
	s, err := New(config.ScheduleConfig{Interval: "@every 1h"}, func(context.Context) {}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}
