package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"masterboxer.com/vibe-feed/models"
)

const userColumns = `id, display_name, handle, avatar, is_influencer, is_founder, trust_score,
	email, password, is_private, created_at`

// CreateUser inserts u; u.PasswordHash must already be hashed.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, handle, avatar, email, password, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`,
		u.ID, u.DisplayName, u.Handle, u.Avatar, strings.ToLower(u.Email), u.PasswordHash, u.IsPrivate,
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, ErrConflict
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.Password = ""
	u.PasswordHash = ""
	u.Following = []string{}
	u.Followers = []string{}
	return u, nil
}

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Handle, &u.Avatar, &u.IsInfluencer, &u.IsFounder,
		&u.TrustScore, &u.Email, &u.PasswordHash, &u.IsPrivate, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// GetUser returns a profile with its accepted following and follower ids.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = ""
	if u.Following, err = s.followIDs(ctx, "following_id", "follower_id", id); err != nil {
		return models.User{}, err
	}
	if u.Followers, err = s.followIDs(ctx, "follower_id", "following_id", id); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// UserByEmail returns the account including its password hash for login.
func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) DisplayName(ctx context.Context, id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query display name: %w", err)
	}
	return name, nil
}

// Follow creates a follow edge: accepted for public accounts, pending for private ones.
// A previously rejected request is re-opened.
func (s *Store) Follow(ctx context.Context, followerID, followingID string) (string, error) {
	if followerID == followingID {
		return "", fmt.Errorf("%w: cannot follow yourself", ErrInvalid)
	}

	var isPrivate bool
	err := s.db.QueryRowContext(ctx, `SELECT is_private FROM users WHERE id = $1`, followingID).Scan(&isPrivate)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query target user: %w", err)
	}

	var existing string
	err = s.db.QueryRowContext(ctx, `
		SELECT status FROM followers
		WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID).Scan(&existing)
	switch {
	case err == nil && existing != "rejected":
		return existing, ErrConflict
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `
			UPDATE followers SET status = 'pending', updated_at = NOW()
			WHERE follower_id = $1 AND following_id = $2`,
			followerID, followingID); err != nil {
			return "", fmt.Errorf("reopen follow request: %w", err)
		}
		return "pending", nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("query follow: %w", err)
	}

	status := "accepted"
	if isPrivate {
		status = "pending"
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO followers (follower_id, following_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`,
		followerID, followingID, status); err != nil {
		return "", fmt.Errorf("insert follow: %w", err)
	}
	return status, nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM followers WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	if affected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingFollowers lists follow requests waiting on userID.
func (s *Store) PendingFollowers(ctx context.Context, userID string) ([]models.FollowerInfo, error) {
	return s.followListStatus(ctx, "f.follower_id", "f.following_id", userID, "pending")
}

// RespondFollow accepts or rejects a pending request from followerID to userID.
func (s *Store) RespondFollow(ctx context.Context, userID, followerID string, accept bool) error {
	status := "rejected"
	if accept {
		status = "accepted"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE followers SET status = $1, updated_at = NOW()
		WHERE follower_id = $2 AND following_id = $3 AND status = 'pending'`,
		status, followerID, userID)
	if err != nil {
		return fmt.Errorf("respond to follow request: %w", err)
	}
	if affected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

// Followers lists accounts with an accepted follow of userID.
func (s *Store) Followers(ctx context.Context, userID string) ([]models.FollowerInfo, error) {
	return s.followList(ctx, "f.follower_id", "f.following_id", userID)
}

// Following lists accounts userID follows (accepted only).
func (s *Store) Following(ctx context.Context, userID string) ([]models.FollowerInfo, error) {
	return s.followList(ctx, "f.following_id", "f.follower_id", userID)
}

func (s *Store) followList(ctx context.Context, joinCol, whereCol, userID string) ([]models.FollowerInfo, error) {
	return s.followListStatus(ctx, joinCol, whereCol, userID, "accepted")
}

func (s *Store) followListStatus(ctx context.Context, joinCol, whereCol, userID, status string) ([]models.FollowerInfo, error) {
	query, args, err := s.psql.Select("u.id", "u.handle", "u.display_name", "f.created_at").
		From("followers f").
		Join("users u ON u.id = " + joinCol).
		Where(sq.Eq{whereCol: userID, "f.status": status}).
		OrderBy("f.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build follow list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query follow list: %w", err)
	}
	defer rows.Close()

	out := []models.FollowerInfo{}
	for rows.Next() {
		var f models.FollowerInfo
		if err := rows.Scan(&f.ID, &f.Handle, &f.DisplayName, &f.FollowedAt); err != nil {
			return nil, fmt.Errorf("scan follow list: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) FollowPlace(ctx context.Context, userID, place string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO places_followed (user_id, place_name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING`, userID, place); err != nil {
		return fmt.Errorf("follow place: %w", err)
	}
	return nil
}

func (s *Store) UnfollowPlace(ctx context.Context, userID, place string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM places_followed WHERE user_id = $1 AND place_name = $2`, userID, place)
	if err != nil {
		return fmt.Errorf("unfollow place: %w", err)
	}
	if affected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RegisterToken(ctx context.Context, userID, token string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO fcm_tokens (user_id, token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = NOW()`,
		userID, token); err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	return nil
}

// TokensFor returns the device tokens registered to any of userIDs.
func (s *Store) TokensFor(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return []string{}, nil
	}
	query, args, err := s.psql.Select("DISTINCT token").
		From("fcm_tokens").
		Where(sq.Expr("user_id = ANY(?)", pq.Array(userIDs))).
		Where(sq.NotEq{"token": ""}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tokens query: %w", err)
	}
	return s.strings(ctx, query, args...)
}

func (s *Store) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fcm_tokens WHERE token = ANY($1)`, pq.Array(tokens)); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
