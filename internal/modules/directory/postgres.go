package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) ListChains(ctx context.Context) ([]*Chain, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, COALESCE(logo, '')
		FROM chains ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "query chains")
	}
	defer rows.Close()
	var chains []*Chain
	for rows.Next() {
		c := &Chain{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Logo); err != nil {
			return nil, errors.Wrap(err, "scan chain")
		}
		chains = append(chains, c)
	}
	return chains, rows.Err()
}

func (r *postgresRepo) ListStores(ctx context.Context, f StoreFilter) ([]*Store, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ChainID != 0 {
		args = append(args, f.ChainID)
		where = append(where, fmt.Sprintf("chain_id=$%d", len(args)))
	}
	if f.City != "" {
		args = append(args, f.City)
		where = append(where, fmt.Sprintf("LOWER(city)=LOWER($%d)", len(args)))
	}
	q := `SELECT id, chain_id, name, slug, COALESCE(city, '') FROM stores`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query stores")
	}
	defer rows.Close()
	var stores []*Store
	for rows.Next() {
		s := &Store{}
		if err := rows.Scan(&s.ID, &s.ChainID, &s.Name, &s.Slug, &s.City); err != nil {
			return nil, errors.Wrap(err, "scan store")
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

func (r *postgresRepo) GetStore(ctx context.Context, id catalog.StoreID) (*Store, error) {
	s := &Store{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chain_id, name, slug, COALESCE(city, '')
		FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.ChainID, &s.Name, &s.Slug, &s.City)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "store %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get store")
	}
	return s, nil
}
