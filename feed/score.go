package feed

import "masterboxer.com/vibe-feed/models"

const (
	commentWeight = 1.0
	likeWeight    = 0.5
)

var rsvpWeights = map[models.RSVPStatus]float64{
	models.RSVPGoing:      2.0,
	models.RSVPMaybe:      1.0,
	models.RSVPInterested: 0.5,
	models.RSVPNotGoing:   0,
}

// Policy holds the scoring switches that exist only for parity with
// the legacy client. The zero value is the corrected behaviour.
type Policy struct {
	// LegacyRSVPDoubling counts every RSVP twice, as the old client did.
	LegacyRSVPDoubling bool
	// CountDeletedComments scores soft-deleted comments too.
	CountDeletedComments bool
}

// Score is the interaction score of p under the default Policy.
func Score(p models.Post) float64 {
	return Policy{}.Score(p)
}

// Score returns comments×1 + likes×0.5 + Σ RSVP weights. It is never negative.
func (pol Policy) Score(p models.Post) float64 {
	comments := 0
	for _, c := range p.Comments {
		if c.IsDeleted && !pol.CountDeletedComments {
			continue
		}
		comments++
	}

	var rsvp float64
	for _, status := range p.RSVPs {
		rsvp += rsvpWeights[status]
	}
	if pol.LegacyRSVPDoubling {
		rsvp *= 2
	}

	likes := max(p.Likes, 0)
	return float64(comments)*commentWeight + float64(likes)*likeWeight + rsvp
}
