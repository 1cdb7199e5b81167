package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maheshrc27/snapcomposer/internal/models"
)

const publishedPostsSchema = `
	CREATE TABLE IF NOT EXISTS published_posts (
		id              BIGSERIAL PRIMARY KEY,
		author          TEXT NOT NULL,
		permlink        TEXT NOT NULL,
		parent_author   TEXT NOT NULL DEFAULT '',
		parent_permlink TEXT NOT NULL DEFAULT '',
		body            TEXT NOT NULL,
		operations      INTEGER NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (author, permlink)
	);
	CREATE INDEX IF NOT EXISTS published_posts_author_created_at_idx
		ON published_posts (author, created_at DESC);
`

type PublishedPostRepository interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, tx *sql.Tx, post *models.PublishedPost) (int64, error)
	GetByAuthor(ctx context.Context, author string, limit int) ([]*models.PublishedPost, error)
}

type publishedPostRepository struct {
	db *sql.DB
}

func NewPublishedPostRepository(db *sql.DB) PublishedPostRepository {
	return &publishedPostRepository{db: db}
}

func (r *publishedPostRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, publishedPostsSchema); err != nil {
		return fmt.Errorf("failed to create published_posts: %w", err)
	}
	return nil
}

func (r *publishedPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.PublishedPost) (int64, error) {
	query := `
		INSERT INTO published_posts (author, permlink, parent_author, parent_permlink, body, operations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	args := []interface{}{post.Author, post.Permlink, post.ParentAuthor, post.ParentPermlink, post.Body, post.Operations, post.CreatedAt}

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, args...)
	} else {
		row = r.db.QueryRowContext(ctx, query, args...)
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert published post: %w", err)
	}
	return id, nil
}

func (r *publishedPostRepository) GetByAuthor(ctx context.Context, author string, limit int) ([]*models.PublishedPost, error) {
	query := `
		SELECT id, author, permlink, parent_author, parent_permlink, body, operations, created_at
		FROM published_posts
		WHERE author = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, author, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query published posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.PublishedPost{}
	for rows.Next() {
		var p models.PublishedPost
		err := rows.Scan(&p.ID, &p.Author, &p.Permlink, &p.ParentAuthor, &p.ParentPermlink, &p.Body, &p.Operations, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published post: %w", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
