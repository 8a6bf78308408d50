package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/adboard/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdvertisementRepo struct {
	pool *pgxpool.Pool
}

func NewAdvertisementRepo(pool *pgxpool.Pool) *AdvertisementRepo {
	return &AdvertisementRepo{pool: pool}
}

// lockCreator serializes quota-sensitive writes for one creator within
// the current transaction. Without it two concurrent creates at 9/10
// open ads would both pass the count and land at 11.
func lockCreator(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('ad_quota:' || $1::text))`, creatorID)
	return err
}

// CreateWithinQuota inserts ad only if the creator has fewer than quota
// OPEN advertisements. Returns false when the quota is full.
func (r *AdvertisementRepo) CreateWithinQuota(ctx context.Context, ad *models.Advertisement, quota int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := lockCreator(ctx, tx, ad.CreatorID); err != nil {
		return false, err
	}

	var openCount int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM advertisements WHERE creator_id = $1 AND status = $2
	`, ad.CreatorID, models.AdStatusOpen).Scan(&openCount)
	if err != nil {
		return false, err
	}
	if openCount >= quota {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO advertisements (creator_id, title, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, ad.CreatorID, ad.Title, ad.Description, ad.Status).Scan(&ad.ID, &ad.CreatedAt, &ad.UpdatedAt)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// UpdateWithinQuota writes ad's mutable fields. When the resulting
// status is OPEN the creator's open count is re-checked first; the
// count excludes the target row, so a no-op OPEN->OPEN update at the
// quota boundary still succeeds.
func (r *AdvertisementRepo) UpdateWithinQuota(ctx context.Context, ad *models.Advertisement, quota int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := lockCreator(ctx, tx, ad.CreatorID); err != nil {
		return false, err
	}

	if ad.Status == models.AdStatusOpen {
		var openCount int
		err = tx.QueryRow(ctx, `
			SELECT count(*) FROM advertisements
			WHERE creator_id = $1 AND status = $2 AND id <> $3
		`, ad.CreatorID, models.AdStatusOpen, ad.ID).Scan(&openCount)
		if err != nil {
			return false, err
		}
		if openCount >= quota {
			return false, nil
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE advertisements
		SET title = $1, description = $2, status = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`, ad.Title, ad.Description, ad.Status, ad.ID).Scan(&ad.UpdatedAt)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *AdvertisementRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error) {
	var a models.Advertisement
	err := r.pool.QueryRow(ctx, `
		SELECT id, creator_id, title, description, status, created_at, updated_at
		FROM advertisements WHERE id = $1
	`, id).Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdvertisementRepo) GetWithCreator(ctx context.Context, id uuid.UUID) (*models.AdvertisementWithCreator, error) {
	var a models.AdvertisementWithCreator
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.creator_id, a.title, a.description, a.status, a.created_at, a.updated_at,
		       u.username, u.first_name, u.last_name
		FROM advertisements a
		JOIN users u ON u.id = a.creator_id
		WHERE a.id = $1
	`, id).Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt,
		&a.CreatorUsername, &a.CreatorFirstName, &a.CreatorLastName)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdvertisementRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM advertisements WHERE id = $1`, id)
	return err
}

func (r *AdvertisementRepo) CountOpenByCreator(ctx context.Context, creatorID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM advertisements WHERE creator_id = $1 AND status = $2
	`, creatorID, models.AdStatusOpen).Scan(&n)
	return n, err
}

type AdFilter struct {
	Status        *string
	CreatorID     *uuid.UUID
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// List returns advertisements joined with creator info, OPEN first,
// newest first within a status (the board shows active ads on top).
func (r *AdvertisementRepo) List(ctx context.Context, f AdFilter) ([]models.AdvertisementWithCreator, error) {
	query := `
		SELECT a.id, a.creator_id, a.title, a.description, a.status, a.created_at, a.updated_at,
		       u.username, u.first_name, u.last_name
		FROM advertisements a
		JOIN users u ON u.id = a.creator_id
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("a.status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.CreatorID != nil {
		where = append(where, fmt.Sprintf("a.creator_id = $%d", argIdx))
		args = append(args, *f.CreatorID)
		argIdx++
	}
	if f.CreatedAfter != nil {
		where = append(where, fmt.Sprintf("a.created_at >= $%d", argIdx))
		args = append(args, *f.CreatedAfter)
		argIdx++
	}
	if f.CreatedBefore != nil {
		where = append(where, fmt.Sprintf("a.created_at <= $%d", argIdx))
		args = append(args, *f.CreatedBefore)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY a.status DESC, a.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ads []models.AdvertisementWithCreator
	for rows.Next() {
		var a models.AdvertisementWithCreator
		if err := rows.Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt,
			&a.CreatorUsername, &a.CreatorFirstName, &a.CreatorLastName); err != nil {
			return nil, err
		}
		ads = append(ads, a)
	}
	return ads, rows.Err()
}
