package models

// PostType discriminates ordinary check-ins from polls.
type PostType string

const (
	PostTypeRegular PostType = "regular"
	PostTypePoll    PostType = "poll"
)

type Location struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Area    string `json:"area,omitempty"`
}

type Comment struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	IsDeleted bool   `json:"isDeleted,omitempty"`
}

type PollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type Poll struct {
	Question  string            `json:"question"`
	Options   []PollOption      `json:"options"`
	Voters    map[string]string `json:"voters,omitempty"`
	ExpiresAt string            `json:"expiresAt,omitempty"`
}

// Post is a location-tagged check-in or poll as the client stores it.
// Timestamps stay in their wire form; a record with an unparseable date
// still decodes and is neutralised by the feed engine.
type Post struct {
	ID          string                `json:"id"`
	Author      UserSummary           `json:"user"`
	Location    Location              `json:"location"`
	VisitDate   string                `json:"visitDate"`
	CreatedAt   *string               `json:"createdAt,omitempty"`
	Description string                `json:"description"`
	Comments    []Comment             `json:"comments"`
	Likes       int                   `json:"likes"`
	RSVPs       map[string]RSVPStatus `json:"rsvps"`
	Type        PostType              `json:"type"`
	Poll        *Poll                 `json:"poll,omitempty"`
}
