package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"masterboxer.com/vibe-feed/models"
)

var postColumns = []string{
	"p.id", "p.user_id", "u.display_name", "u.handle", "u.avatar",
	"u.is_influencer", "u.is_founder", "u.trust_score",
	"p.location_name", "p.location_address", "p.location_area",
	"p.visit_date", "p.created_at", "p.description", "p.type",
	"p.poll_question", "p.poll_options", "p.poll_expires_at",
	"(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS likes",
}

// LoadSnapshot materialises every post created since the given time (or
// without a creation time) with comments, likes, RSVPs and poll votes.
// A zero since loads everything.
func (s *Store) LoadSnapshot(ctx context.Context, since time.Time) ([]models.Post, error) {
	q := s.psql.Select(postColumns...).
		From("posts p").
		Join("users u ON u.id = p.user_id").
		OrderBy("p.created_at DESC NULLS LAST", "p.id")
	if !since.IsZero() {
		q = q.Where(sq.Or{sq.Eq{"p.created_at": nil}, sq.GtOrEq{"p.created_at": since}})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build snapshot query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var (
		posts []models.Post
		index = map[string]int{}
	)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(posts)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	if len(posts) == 0 {
		return []models.Post{}, nil
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	if err := s.attachComments(ctx, ids, posts, index); err != nil {
		return nil, err
	}
	if err := s.attachRSVPs(ctx, ids, posts, index); err != nil {
		return nil, err
	}
	if err := s.attachVotes(ctx, ids, posts, index); err != nil {
		return nil, err
	}
	return posts, nil
}

func scanPost(rows *sql.Rows) (models.Post, error) {
	var (
		p            models.Post
		postType     string
		createdAt    sql.NullTime
		pollQuestion sql.NullString
		pollOptions  []byte
		pollExpires  sql.NullString
	)
	if err := rows.Scan(
		&p.ID, &p.Author.ID, &p.Author.DisplayName, &p.Author.Handle, &p.Author.Avatar,
		&p.Author.IsInfluencer, &p.Author.IsFounder, &p.Author.TrustScore,
		&p.Location.Name, &p.Location.Address, &p.Location.Area,
		&p.VisitDate, &createdAt, &p.Description, &postType,
		&pollQuestion, &pollOptions, &pollExpires,
		&p.Likes,
	); err != nil {
		return models.Post{}, fmt.Errorf("scan post: %w", err)
	}

	p.Type = models.PostType(postType)
	if createdAt.Valid {
		ts := createdAt.Time.UTC().Format(time.RFC3339Nano)
		p.CreatedAt = &ts
	}
	p.RSVPs = map[string]models.RSVPStatus{}
	p.Comments = []models.Comment{}

	if pollQuestion.Valid {
		poll := &models.Poll{Question: pollQuestion.String, ExpiresAt: pollExpires.String, Voters: map[string]string{}}
		if len(pollOptions) > 0 {
			// A corrupt options document leaves the poll without options rather than failing the snapshot.
			_ = json.Unmarshal(pollOptions, &poll.Options)
		}
		p.Poll = poll
	}
	return p, nil
}

func (s *Store) attachComments(ctx context.Context, ids []string, posts []models.Post, index map[string]int) error {
	query, args, err := s.psql.Select("id", "post_id", "user_id", "text", "is_deleted", "created_at").
		From("comments").
		Where(sq.Expr("post_id = ANY(?)", pq.Array(ids))).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build comments query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c         models.Comment
			postID    string
			createdAt time.Time
		)
		if err := rows.Scan(&c.ID, &postID, &c.UserID, &c.Text, &c.IsDeleted, &createdAt); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		c.Timestamp = createdAt.UTC().Format(time.RFC3339)
		if i, ok := index[postID]; ok {
			posts[i].Comments = append(posts[i].Comments, c)
		}
	}
	return rows.Err()
}

func (s *Store) attachRSVPs(ctx context.Context, ids []string, posts []models.Post, index map[string]int) error {
	query, args, err := s.psql.Select("post_id", "user_id", "status").
		From("rsvps").
		Where(sq.Expr("post_id = ANY(?)", pq.Array(ids))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rsvps query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query rsvps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID, status string
		if err := rows.Scan(&postID, &userID, &status); err != nil {
			return fmt.Errorf("scan rsvp: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].RSVPs[userID] = models.NormalizeRSVP(status)
		}
	}
	return rows.Err()
}

func (s *Store) attachVotes(ctx context.Context, ids []string, posts []models.Post, index map[string]int) error {
	query, args, err := s.psql.Select("post_id", "user_id", "option_id").
		From("poll_votes").
		Where(sq.Expr("post_id = ANY(?)", pq.Array(ids))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build votes query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID, optionID string
		if err := rows.Scan(&postID, &userID, &optionID); err != nil {
			return fmt.Errorf("scan vote: %w", err)
		}
		i, ok := index[postID]
		if !ok || posts[i].Poll == nil {
			continue
		}
		poll := posts[i].Poll
		poll.Voters[userID] = optionID
		for j := range poll.Options {
			if poll.Options[j].ID == optionID {
				poll.Options[j].Votes++
			}
		}
	}
	return rows.Err()
}

// LoadViewer returns the viewer with their accepted following set.
func (s *Store) LoadViewer(ctx context.Context, userID string) (models.Viewer, error) {
	following, err := s.followIDs(ctx, "following_id", "follower_id", userID)
	if err != nil {
		return models.Viewer{}, err
	}
	return models.NewViewer(userID, following), nil
}

func (s *Store) followIDs(ctx context.Context, col, byCol, userID string) ([]string, error) {
	query, args, err := s.psql.Select(col).
		From("followers").
		Where(sq.Eq{byCol: userID, "status": "accepted"}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build follow query: %w", err)
	}
	return s.strings(ctx, query, args...)
}

// LoadInfluencers returns the roster of influencer and founder accounts.
func (s *Store) LoadInfluencers(ctx context.Context) ([]models.UserSummary, error) {
	query, args, err := s.psql.Select("id", "display_name", "handle", "avatar", "is_influencer", "is_founder", "trust_score").
		From("users").
		Where(sq.Or{sq.Eq{"is_influencer": true}, sq.Eq{"is_founder": true}}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build roster query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	roster := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Handle, &u.Avatar, &u.IsInfluencer, &u.IsFounder, &u.TrustScore); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		roster = append(roster, u)
	}
	return roster, rows.Err()
}

func (s *Store) FollowedPlaces(ctx context.Context, userID string) ([]string, error) {
	query, args, err := s.psql.Select("place_name").
		From("places_followed").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build places query: %w", err)
	}
	return s.strings(ctx, query, args...)
}

// FrequentPlaces returns the viewer's most checked-in location names.
func (s *Store) FrequentPlaces(ctx context.Context, userID string, limit int) ([]string, error) {
	query, args, err := s.psql.Select("location_name").
		From("posts").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.NotEq{"location_name": ""}).
		GroupBy("location_name").
		OrderBy("COUNT(*) DESC", "location_name").
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build frequent places query: %w", err)
	}
	return s.strings(ctx, query, args...)
}

func (s *Store) strings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
