package repositories

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// Toggle inserts the like if the key is free, otherwise deletes the existing
// row. The UNIQUE(user_id, target_id, target_kind) constraint makes the
// insert the deciding step: of two concurrent toggles one insert wins and
// the loser's conflict falls through to the delete branch, so the pair
// serializes as toggle-on then toggle-off and the key never holds two rows.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, like models.Like) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        INSERT INTO likes (id, user_id, target_id, target_kind, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, target_id, target_kind) DO NOTHING
    `, like.ID, like.UserID, like.TargetID, like.Target, like.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	if _, err := conn.Exec(ctx, `
        DELETE FROM likes
        WHERE user_id = $1 AND target_id = $2 AND target_kind = $3
    `, like.UserID, like.TargetID, like.Target); err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	return false, nil
}

// ListLikedVideos returns the user's video likes joined with the video and
// its owner, newest like first.
func (r *PostgresLikeRepository) ListLikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT l.id, l.user_id, l.target_id, l.target_kind, l.created_at,
               v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
               v.duration_seconds, v.views, v.published, v.created_at,
               u.id, u.username, u.email, u.full_name, u.avatar_url, u.cover_image_url
        FROM likes l
        JOIN videos v ON v.id = l.target_id
        JOIN users u ON u.id = v.owner_id
        WHERE l.user_id = $1 AND l.target_kind = 'video'
        ORDER BY l.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	var liked []models.LikedVideo
	for rows.Next() {
		var item models.LikedVideo
		if err := rows.Scan(
			&item.Like.ID, &item.Like.UserID, &item.Like.TargetID, &item.Like.Target, &item.Like.CreatedAt,
			&item.Video.ID, &item.Video.OwnerID, &item.Video.Title, &item.Video.Description, &item.Video.VideoURL,
			&item.Video.ThumbnailURL, &item.Video.Duration, &item.Video.Views, &item.Video.Published, &item.Video.CreatedAt,
			&item.Owner.ID, &item.Owner.Username, &item.Owner.Email, &item.Owner.FullName, &item.Owner.AvatarURL, &item.Owner.CoverImageURL,
		); err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		liked = append(liked, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}

	return liked, nil
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
