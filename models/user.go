package models

import "time"

// UserSummary is the author card embedded in every post and in the influencer roster.
type UserSummary struct {
	ID           string  `json:"id"`
	DisplayName  string  `json:"name"`
	Handle       string  `json:"handle"`
	Avatar       string  `json:"avatar,omitempty"`
	IsInfluencer bool    `json:"isInfluencer,omitempty"`
	IsFounder    bool    `json:"isFounder,omitempty"`
	TrustScore   float64 `json:"trustScore"`
}

type User struct {
	UserSummary
	Email        string    `json:"email"`
	Password     string    `json:"password,omitempty"`
	PasswordHash string    `json:"-"`
	IsPrivate    bool      `json:"is_private"`
	Following    []string  `json:"following"`
	Followers    []string  `json:"followers"`
	CreatedAt    time.Time `json:"created_at"`
}

type FollowerInfo struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	FollowedAt  time.Time `json:"followed_at"`
}

// Viewer is the identity a feed is computed for.
type Viewer struct {
	ID        string
	Following map[string]struct{}
}

func NewViewer(id string, following []string) Viewer {
	set := make(map[string]struct{}, len(following))
	for _, f := range following {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return Viewer{ID: id, Following: set}
}

func (v Viewer) Follows(id string) bool {
	_, ok := v.Following[id]
	return ok
}

// InInnerCircle reports whether authorID is the viewer or someone the viewer follows.
// Posts without an author never belong to anyone's inner circle.
func (v Viewer) InInnerCircle(authorID string) bool {
	if authorID == "" {
		return false
	}
	return authorID == v.ID || v.Follows(authorID)
}
