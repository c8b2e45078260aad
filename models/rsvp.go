package models

import "strings"

// RSVPStatus is a viewer's answer to a post's event.
type RSVPStatus uint8

const (
	RSVPNone RSVPStatus = iota
	RSVPGoing
	RSVPInterested
	RSVPMaybe
	RSVPNotGoing
)

var rsvpNames = map[RSVPStatus]string{
	RSVPGoing:      "Going",
	RSVPInterested: "Interested",
	RSVPMaybe:      "Maybe",
	RSVPNotGoing:   "Not Going",
}

// legacy spellings written by older clients
var rsvpSynonyms = map[string]RSVPStatus{
	"going":      RSVPGoing,
	"interested": RSVPInterested,
	"maybe":      RSVPMaybe,
	"not going":  RSVPNotGoing,
	"not_going":  RSVPNotGoing,
	"notgoing":   RSVPNotGoing,
	"not-going":  RSVPNotGoing,
}

// NormalizeRSVP maps a stored status string onto its variant.
// Anything unrecognised becomes RSVPNone.
func NormalizeRSVP(raw string) RSVPStatus {
	if s, ok := rsvpSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return RSVPNone
}

func (s RSVPStatus) String() string {
	return rsvpNames[s]
}

func (s RSVPStatus) Valid() bool {
	_, ok := rsvpNames[s]
	return ok
}

func (s RSVPStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RSVPStatus) UnmarshalText(text []byte) error {
	*s = NormalizeRSVP(string(text))
	return nil
}
