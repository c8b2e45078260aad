package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/models"
)

var ErrPollClosed = errors.New("poll closed")

// CreatePost inserts a check-in or poll authored by p.Author.ID and returns
// it with its id and creation time filled in.
func (s *Store) CreatePost(ctx context.Context, p models.Post) (models.Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Type == "" {
		p.Type = models.PostTypeRegular
	}

	var pollQuestion, pollExpires sql.NullString
	var pollOptions []byte
	if p.Poll != nil {
		for i := range p.Poll.Options {
			if p.Poll.Options[i].ID == "" {
				p.Poll.Options[i].ID = uuid.NewString()
			}
			p.Poll.Options[i].Votes = 0
		}
		opts, err := json.Marshal(p.Poll.Options)
		if err != nil {
			return models.Post{}, fmt.Errorf("encode poll options: %w", err)
		}
		pollOptions = opts
		pollQuestion = sql.NullString{String: p.Poll.Question, Valid: true}
		pollExpires = sql.NullString{String: p.Poll.ExpiresAt, Valid: p.Poll.ExpiresAt != ""}
		p.Poll.Voters = map[string]string{}
	}

	var visitAt sql.NullTime
	if t, ok := feed.ParseTimestamp(p.VisitDate); ok {
		visitAt = sql.NullTime{Time: t.UTC(), Valid: true}
	}

	query, args, err := s.psql.Insert("posts").
		Columns("id", "user_id", "location_name", "location_address", "location_area",
			"visit_date", "visit_at", "created_at", "description", "type",
			"poll_question", "poll_options", "poll_expires_at").
		Values(p.ID, p.Author.ID, p.Location.Name, p.Location.Address, p.Location.Area,
			p.VisitDate, visitAt, sq.Expr("NOW()"), p.Description, string(p.Type),
			pollQuestion, pollOptions, pollExpires).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return models.Post{}, fmt.Errorf("build insert post: %w", err)
	}

	var createdAt time.Time
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&createdAt); err != nil {
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}
	ts := createdAt.UTC().Format(time.RFC3339Nano)
	p.CreatedAt = &ts
	p.Comments = []models.Comment{}
	p.RSVPs = map[string]models.RSVPStatus{}
	return p, nil
}

// PostAuthor returns the author id of a post.
func (s *Store) PostAuthor(ctx context.Context, postID string) (string, error) {
	var authorID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&authorID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query post author: %w", err)
	}
	return authorID, nil
}

// DeletePost removes a post owned by userID.
func (s *Store) DeletePost(ctx context.Context, postID, userID string) error {
	authorID, err := s.PostAuthor(ctx, postID)
	if err != nil {
		return err
	}
	if authorID != userID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// ToggleLike flips userID's like on a post and reports the new state.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("remove like: %w", err)
	}
	if affected(res) > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO likes (post_id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING`, postID, userID); err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	return true, nil
}

func (s *Store) AddComment(ctx context.Context, postID, userID, text string) (models.Comment, error) {
	c := models.Comment{ID: uuid.NewString(), UserID: userID, Text: text}
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (id, post_id, user_id, text, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
		RETURNING created_at`,
		c.ID, postID, userID, text).Scan(&createdAt)
	if err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	c.Timestamp = createdAt.UTC().Format(time.RFC3339)
	return c, nil
}

// SoftDeleteComment hides a comment owned by userID. The row is kept so
// threads stay intact.
func (s *Store) SoftDeleteComment(ctx context.Context, commentID, userID string) error {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM comments WHERE id = $1`, commentID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query comment: %w", err)
	}
	if ownerID != userID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE comments SET is_deleted = TRUE WHERE id = $1`, commentID); err != nil {
		return fmt.Errorf("soft delete comment: %w", err)
	}
	return nil
}

// SetRSVP records userID's answer for a post. RSVPNone clears it.
func (s *Store) SetRSVP(ctx context.Context, postID, userID string, status models.RSVPStatus) error {
	if !status.Valid() {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM rsvps WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
			return fmt.Errorf("clear rsvp: %w", err)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO rsvps (post_id, user_id, status, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (post_id, user_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = NOW()`,
		postID, userID, status.String()); err != nil {
		return fmt.Errorf("upsert rsvp: %w", err)
	}
	return nil
}

// CastPollVote records or changes userID's vote on a poll post.
func (s *Store) CastPollVote(ctx context.Context, postID, userID, optionID string, now time.Time) error {
	var (
		postType string
		options  []byte
		expires  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT type, poll_options, poll_expires_at FROM posts WHERE id = $1`, postID).
		Scan(&postType, &options, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query poll: %w", err)
	}
	if models.PostType(postType) != models.PostTypePoll {
		return fmt.Errorf("%w: post %s is not a poll", ErrInvalid, postID)
	}
	if expires.Valid && strings.TrimSpace(expires.String) != "" {
		if t, err := time.Parse(time.RFC3339, expires.String); err == nil && !now.Before(t) {
			return ErrPollClosed
		}
	}

	var opts []models.PollOption
	if err := json.Unmarshal(options, &opts); err != nil {
		return fmt.Errorf("decode poll options: %w", err)
	}
	known := false
	for _, o := range opts {
		if o.ID == optionID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown option %q", ErrInvalid, optionID)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_votes (post_id, user_id, option_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (post_id, user_id) DO UPDATE SET option_id = EXCLUDED.option_id`,
		postID, userID, optionID); err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	return nil
}

// DropIn is a post some users have said they are going to.
type DropIn struct {
	PostID     string
	AuthorID   string
	AuthorName string
	Place      string
	VisitDate  string
	Going      []string
}

// UpcomingDropIns returns posts with at least one Going RSVP whose visit
// falls in (from, to]. Rows written before visit_at existed have it NULL and
// are always returned; the caller parses their visit_date.
func (s *Store) UpcomingDropIns(ctx context.Context, from, to time.Time) ([]DropIn, error) {
	query, args, err := s.psql.Select("p.id", "p.user_id", "u.display_name", "p.location_name", "p.visit_date", "r.user_id").
		From("posts p").
		Join("users u ON u.id = p.user_id").
		Join("rsvps r ON r.post_id = p.id").
		Where("lower(trim(r.status)) = ?", strings.ToLower(models.RSVPGoing.String())).
		Where(sq.Or{
			sq.Eq{"p.visit_at": nil},
			sq.And{sq.Gt{"p.visit_at": from}, sq.LtOrEq{"p.visit_at": to}},
		}).
		OrderBy("p.id", "r.user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build drop-in query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query drop-ins: %w", err)
	}
	defer rows.Close()

	var out []DropIn
	for rows.Next() {
		var d DropIn
		var goer string
		if err := rows.Scan(&d.PostID, &d.AuthorID, &d.AuthorName, &d.Place, &d.VisitDate, &goer); err != nil {
			return nil, fmt.Errorf("scan drop-in: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].PostID == d.PostID {
			out[n-1].Going = append(out[n-1].Going, goer)
			continue
		}
		d.Going = []string{goer}
		out = append(out, d)
	}
	return out, rows.Err()
}
