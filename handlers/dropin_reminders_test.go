package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"masterboxer.com/vibe-feed/store"
)

type fakeDropIns struct {
	drops    []store.DropIn
	from, to time.Time
	err      error
}

func (f *fakeDropIns) UpcomingDropIns(_ context.Context, from, to time.Time) ([]store.DropIn, error) {
	f.from, f.to = from, to
	return f.drops, f.err
}

func TestSendDropInReminders(t *testing.T) {
	now := time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC)
	src := &fakeDropIns{drops: []store.DropIn{
		{PostID: "soon", AuthorName: "Ana", Place: "Pier", VisitDate: "2025-03-01T17:58:00Z", Going: []string{"u1", "u2"}},
		{PostID: "already-reminded", AuthorName: "Bo", VisitDate: "2025-03-01T17:50:00Z", Going: []string{"u3"}},
		{PostID: "later", AuthorName: "Cy", VisitDate: "2025-03-01T20:00:00Z", Going: []string{"u4"}},
		{PostID: "garbage", AuthorName: "Di", VisitDate: "tonight", Going: []string{"u5"}},
	}}
	n := newFakeNotifier()

	count, err := SendDropInReminders(context.Background(), src, n, DropInWindow{Lead: time.Hour, Interval: 5 * time.Minute}, now)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, now.Add(55*time.Minute), src.from)
	require.Equal(t, now.Add(time.Hour), src.to)

	sent := n.next(t)
	require.Equal(t, []string{"u1", "u2"}, sent.UserIDs)
	require.Equal(t, "soon", sent.Data["post_id"])
	require.Equal(t, "Ana's vibe at Pier starts at 17:58 UTC", sent.Body)
	n.none(t)
}

func TestSendDropInRemindersSourceError(t *testing.T) {
	boom := errors.New("db down")
	_, err := SendDropInReminders(context.Background(), &fakeDropIns{err: boom}, newFakeNotifier(),
		DropInWindow{Lead: time.Hour, Interval: 5 * time.Minute}, time.Now())
	require.ErrorIs(t, err, boom)
}

func TestDropInWindowBounds(t *testing.T) {
	now := time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC)
	w := DropInWindow{Lead: time.Hour, Interval: 5 * time.Minute}
	require.True(t, w.contains(now.Add(time.Hour), now))
	require.False(t, w.contains(now.Add(55*time.Minute), now))
	require.True(t, w.contains(now.Add(56*time.Minute), now))
	require.False(t, w.contains(now.Add(61*time.Minute), now))
}
