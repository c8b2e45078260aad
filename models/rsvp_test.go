package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRSVP(t *testing.T) {
	cases := map[string]RSVPStatus{
		"Going":      RSVPGoing,
		"going":      RSVPGoing,
		" GOING ":    RSVPGoing,
		"Interested": RSVPInterested,
		"Maybe":      RSVPMaybe,
		"Not Going":  RSVPNotGoing,
		"not_going":  RSVPNotGoing,
		"NotGoing":   RSVPNotGoing,
		"":           RSVPNone,
		"yes please": RSVPNone,
	}
	for raw, want := range cases {
		require.Equal(t, want, NormalizeRSVP(raw), raw)
	}
}

func TestPostDecodesLegacyDocument(t *testing.T) {
	doc := `{
		"id": "p1",
		"user": {"id": "u1", "name": "Ana", "handle": "@ana", "isInfluencer": true, "trustScore": 0.9},
		"location": {"name": "Dock 7", "area": "Harbour"},
		"visitDate": "2026-03-14T20:00",
		"description": "[Chill] sunset set",
		"comments": [{"id": "c1", "userId": "u2", "text": "see you", "timestamp": "2026-03-14T10:00:00Z", "isDeleted": true}],
		"likes": 4,
		"rsvps": {"u2": "going", "u3": "Not Going", "u4": "sure"},
		"type": "regular"
	}`

	var p Post
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	require.Nil(t, p.CreatedAt)
	require.Equal(t, RSVPGoing, p.RSVPs["u2"])
	require.Equal(t, RSVPNotGoing, p.RSVPs["u3"])
	require.Equal(t, RSVPNone, p.RSVPs["u4"])
	require.True(t, p.Comments[0].IsDeleted)

	out, err := json.Marshal(map[string]RSVPStatus{"u2": p.RSVPs["u2"]})
	require.NoError(t, err)
	require.JSONEq(t, `{"u2":"Going"}`, string(out))
}

func TestViewerInnerCircle(t *testing.T) {
	v := NewViewer("me", []string{"a", ""})
	require.True(t, v.InInnerCircle("me"))
	require.True(t, v.InInnerCircle("a"))
	require.False(t, v.InInnerCircle("b"))
	require.False(t, v.InInnerCircle(""))
}
