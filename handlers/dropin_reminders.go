package handlers

import (
	"context"
	"time"

	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/models"
	"masterboxer.com/vibe-feed/services"
	"masterboxer.com/vibe-feed/store"
)

type DropInSource interface {
	UpcomingDropIns(ctx context.Context, from, to time.Time) ([]store.DropIn, error)
}

// DropInWindow selects visits starting in (now+Lead-Interval, now+Lead].
// Running the job every Interval reminds each visit exactly once.
type DropInWindow struct {
	Lead     time.Duration
	Interval time.Duration
}

func (w DropInWindow) bounds(now time.Time) (time.Time, time.Time) {
	end := now.Add(w.Lead)
	return end.Add(-w.Interval), end
}

func (w DropInWindow) contains(visit, now time.Time) bool {
	start, end := w.bounds(now)
	return visit.After(start) && !visit.After(end)
}

// SendDropInReminders pushes a reminder to everyone who RSVP'd Going to a
// visit that is about to start. It returns the number of posts notified.
func SendDropInReminders(ctx context.Context, src DropInSource, notifier services.Notifier, window DropInWindow, now time.Time) (int, error) {
	log.Printf("[DropInReminder] Job started at %v UTC", now.UTC())

	from, to := window.bounds(now)
	drops, err := src.UpcomingDropIns(ctx, from, to)
	if err != nil {
		log.Printf("[DropInReminder] Failed to fetch drop-ins: %v", err)
		return 0, err
	}

	var notified, skipped int
	for _, d := range drops {
		visit, ok := feed.ParseTimestamp(d.VisitDate)
		if !ok {
			log.Printf("[DropInReminder] Post %s has unparseable visitDate %q", d.PostID, d.VisitDate)
			skipped++
			continue
		}
		if !window.contains(visit, now) || !feed.IsLive(models.Post{ID: d.PostID, VisitDate: d.VisitDate}, now) {
			skipped++
			continue
		}

		place := d.Place
		if place == "" {
			place = "the spot"
		}
		body := d.AuthorName + "'s vibe at " + place + " starts at " + visit.UTC().Format("15:04") + " UTC"
		if err := notifier.NotifyUsers(ctx, d.Going, "Drop in soon 📍", body, map[string]string{
			"type":    "dropin_reminder",
			"post_id": d.PostID,
		}); err != nil {
			log.Printf("[DropInReminder] FCM error for post %s: %v", d.PostID, err)
			continue
		}
		notified++
		log.Printf("[DropInReminder] Post %s → %d going", d.PostID, len(d.Going))
	}

	log.Printf("[DropInReminder] Job finished | notified %d posts, skipped %d", notified, skipped)
	return notified, nil
}
