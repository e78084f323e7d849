package cart

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/optimizer"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const cartColumns = `id, owner_id, name, is_active, is_archived, version, preference, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, rec *Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if rec.IsActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE carts SET is_active=FALSE WHERE owner_id=$1 AND is_active`, rec.OwnerID); err != nil {
			return errors.Wrap(err, "deactivate carts")
		}
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO carts (id, owner_id, name, is_active, is_archived, version, preference)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		rec.ID, rec.OwnerID, rec.Name, rec.IsActive, rec.IsArchived, rec.Version,
		pq.Array(storeIDs(rec.Snapshot.Preference))).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert cart")
	}
	if err := insertContents(ctx, tx, rec); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (r *postgresRepo) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanCart(r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id=$1`, id).Scan)
	if err != nil {
		return nil, err
	}
	if err := r.loadContents(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *postgresRepo) GetActive(ctx context.Context, ownerID uuid.UUID) (*Record, error) {
	rec, err := scanCart(r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE owner_id=$1 AND is_active AND NOT is_archived`, ownerID).Scan)
	if err != nil {
		return nil, err
	}
	if err := r.loadContents(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *postgresRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE owner_id=$1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "query carts")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanCart(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate carts")
	}
	for _, rec := range records {
		if err := r.loadContents(ctx, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (r *postgresRepo) Save(ctx context.Context, rec *Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		UPDATE carts SET preference=$1, version=version+1, updated_at=NOW()
		WHERE id=$2 AND version=$3
		RETURNING updated_at`,
		pq.Array(storeIDs(rec.Snapshot.Preference)), rec.ID, rec.Version).
		Scan(&rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.Wrapf(ErrConflict, "cart %s version %d", rec.ID, rec.Version)
	}
	if err != nil {
		return errors.Wrap(err, "update cart")
	}

	for _, table := range []string{"cart_lines", "cart_unavailable"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE cart_id=$1`, rec.ID); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}
	if err := insertContents(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	rec.Version++
	return nil
}

func (r *postgresRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.execOne(ctx, `UPDATE carts SET name=$1, updated_at=NOW() WHERE id=$2`, name, id)
}

func (r *postgresRepo) Archive(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `UPDATE carts SET is_archived=TRUE, is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
}

func (r *postgresRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM carts WHERE id=$1`, id)
}

func (r *postgresRepo) SetActive(ctx context.Context, ownerID, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET is_active=FALSE WHERE owner_id=$1 AND is_active`, ownerID); err != nil {
		return errors.Wrap(err, "deactivate carts")
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE carts SET is_active=TRUE, updated_at=NOW() WHERE id=$1 AND owner_id=$2 AND NOT is_archived`, id, ownerID)
	if err != nil {
		return errors.Wrap(err, "activate cart")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrCartNotFound, "cart %s", id)
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (r *postgresRepo) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "exec")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *postgresRepo) loadContents(ctx context.Context, rec *Record) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, store_id, quantity FROM cart_lines
		WHERE cart_id=$1 ORDER BY position`, rec.ID)
	if err != nil {
		return errors.Wrap(err, "query cart lines")
	}
	defer rows.Close()
	for rows.Next() {
		var l optimizer.Line
		if err := rows.Scan(&l.ProductID, &l.StoreID, &l.Quantity); err != nil {
			return errors.Wrap(err, "scan cart line")
		}
		rec.Snapshot.Lines = append(rec.Snapshot.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate cart lines")
	}

	urows, err := r.db.QueryContext(ctx, `
		SELECT product_id, title, quantity, reason FROM cart_unavailable
		WHERE cart_id=$1 ORDER BY position`, rec.ID)
	if err != nil {
		return errors.Wrap(err, "query unavailable")
	}
	defer urows.Close()
	for urows.Next() {
		var u Unavailable
		if err := urows.Scan(&u.ProductID, &u.Title, &u.Quantity, &u.Reason); err != nil {
			return errors.Wrap(err, "scan unavailable")
		}
		rec.Snapshot.Unavailable = append(rec.Snapshot.Unavailable, u)
	}
	return errors.Wrap(urows.Err(), "iterate unavailable")
}

func insertContents(ctx context.Context, tx *sql.Tx, rec *Record) error {
	for i, l := range rec.Snapshot.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, store_id, quantity, position)
			VALUES ($1,$2,$3,$4,$5)`,
			rec.ID, l.ProductID, l.StoreID, l.Quantity, i); err != nil {
			return errors.Wrap(err, "insert cart line")
		}
	}
	for i, u := range rec.Snapshot.Unavailable {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_unavailable (cart_id, product_id, title, quantity, reason, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			rec.ID, u.ProductID, u.Title, u.Quantity, u.Reason, i); err != nil {
			return errors.Wrap(err, "insert unavailable")
		}
	}
	return nil
}

func scanCart(scan func(...interface{}) error) (*Record, error) {
	rec := &Record{}
	var pref pq.Int64Array
	err := scan(&rec.ID, &rec.OwnerID, &rec.Name, &rec.IsActive, &rec.IsArchived,
		&rec.Version, &pref, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan cart")
	}
	for _, id := range pref {
		rec.Snapshot.Preference = append(rec.Snapshot.Preference, catalog.StoreID(id))
	}
	return rec, nil
}

func storeIDs(ids []catalog.StoreID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
