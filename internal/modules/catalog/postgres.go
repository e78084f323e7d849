package catalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const selectProducts = `
	SELECT id, title, category, measure_unit, image_url
	FROM products WHERE id = ANY($1)`

const selectOffers = `
	SELECT o.product_id, o.store_id, s.name, s.chain_id, c.name,
	       o.price, o.previous_price, o.in_stock, o.url
	FROM offers o
	JOIN stores s ON s.id = o.store_id
	JOIN chains c ON c.id = s.chain_id
	WHERE o.product_id = ANY($1)
	ORDER BY o.product_id, o.store_id`

func (r *postgresRepo) GetProduct(ctx context.Context, id string) (*Product, error) {
	products, err := r.GetProducts(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "product %s", id)
	}
	return products[0], nil
}

func (r *postgresRepo) GetProducts(ctx context.Context, ids []string) ([]*Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, selectProducts, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	byID := make(map[string]*Product, len(ids))
	for rows.Next() {
		p := &Product{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Category, &p.MeasureUnit, &p.ImageURL); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}

	offerRows, err := r.db.QueryContext(ctx, selectOffers, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "query offers")
	}
	defer offerRows.Close()
	for offerRows.Next() {
		var (
			productID string
			o         Offer
			prev      sql.NullFloat64
		)
		if err := offerRows.Scan(&productID, &o.StoreID, &o.StoreName, &o.ChainID, &o.ChainName,
			&o.Price, &prev, &o.InStock, &o.URL); err != nil {
			return nil, errors.Wrap(err, "scan offer")
		}
		if prev.Valid {
			v := prev.Float64
			o.PreviousPrice = &v
		}
		if p, ok := byID[productID]; ok {
			p.Offers = append(p.Offers, o)
		}
	}
	if err := offerRows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate offers")
	}

	products := make([]*Product, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
			delete(byID, id)
		}
	}
	return products, nil
}
