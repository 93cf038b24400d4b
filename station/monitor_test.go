package station

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/memo-567/geogram-sub008/internal/chat"
)

func TestMonitor_StartsUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMonitor(NewMockAPI(ctrl), testURL, time.Minute, testLogger())

	assert.Equal(t, Unknown, m.State())
	assert.False(t, m.Reachable())
}

func TestMonitor_PollTransitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	m := NewMonitor(api, testURL, time.Minute, testLogger())

	api.EXPECT().ListRooms(gomock.Any(), testURL).Return([]chat.Room{}, nil)
	m.poll(context.Background())
	assert.Equal(t, Online, m.State())

	api.EXPECT().ListRooms(gomock.Any(), testURL).Return(nil, errors.New("refused"))
	m.poll(context.Background())
	assert.Equal(t, Offline, m.State())

	api.EXPECT().ListRooms(gomock.Any(), testURL).Return([]chat.Room{}, nil)
	m.poll(context.Background())
	assert.Equal(t, Online, m.State())
}

func TestMonitor_OnChangeFiresOnEdgesOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	m := NewMonitor(api, testURL, time.Minute, testLogger())

	var edges []bool

	m.OnChange(func(online bool) { edges = append(edges, online) })

	api.EXPECT().ListRooms(gomock.Any(), testURL).Return([]chat.Room{}, nil).Times(3)
	m.poll(context.Background())
	m.poll(context.Background())
	m.poll(context.Background())

	api.EXPECT().ListRooms(gomock.Any(), testURL).Return(nil, errors.New("refused")).Times(2)
	m.poll(context.Background())
	m.poll(context.Background())

	// Three green polls and two red ones produce exactly two edges.
	assert.Equal(t, []bool{true, false}, edges)
}

func TestMonitor_ForceOfflineSuppressesPolls(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	m := NewMonitor(api, testURL, time.Minute, testLogger())

	m.ForceOffline(true)
	assert.Equal(t, Offline, m.State())

	// No ListRooms expectation: a poll while forced must not touch the
	// network.
	m.poll(context.Background())
	assert.Equal(t, Offline, m.State())

	m.ForceOffline(false)

	api.EXPECT().ListRooms(gomock.Any(), testURL).Return([]chat.Room{}, nil)
	m.poll(context.Background())
	assert.Equal(t, Online, m.State())
}

func TestMonitor_CancelledPollDoesNotChangeState(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	m := NewMonitor(api, testURL, time.Minute, testLogger())

	m.MarkOnline()

	ctx, cancel := context.WithCancel(context.Background())

	api.EXPECT().ListRooms(gomock.Any(), testURL).
		DoAndReturn(func(ctx context.Context, _ string) ([]chat.Room, error) {
			cancel()
			return nil, ctx.Err()
		})

	m.poll(ctx)

	// An aborted check is not evidence of being offline.
	assert.Equal(t, Online, m.State())
}

func TestMonitor_MarkersActAsCompletedChecks(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMonitor(NewMockAPI(ctrl), testURL, time.Minute, testLogger())

	var edges []bool

	m.OnChange(func(online bool) { edges = append(edges, online) })

	m.MarkOnline()
	m.MarkOnline()
	m.MarkOffline()

	assert.Equal(t, []bool{true, false}, edges)
}
