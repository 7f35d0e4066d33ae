package shops

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

const (
	createShopsTable = `CREATE TABLE IF NOT EXISTS shops(
		id serial primary key,
		name text not null,
		repair boolean not null default false,
		rental boolean not null default false,
		sale boolean not null default false,
		storage boolean not null default false,
		address text not null,
		postal_code text not null,
		city text not null default 'Montréal',
		phone text,
		website text,
		notes text,
		lat text,
		lon text,
		status text not null default 'approved'
	);`

	selectShops = `SELECT id, name, repair, rental, sale, storage, address, postal_code, city,
		phone, website, notes, lat, lon, status
		FROM shops WHERE status = $1`
)

// service flag columns, never user input
var serviceColumn = map[model.ServiceFilter]string{
	model.ServiceRepair:  "repair",
	model.ServiceRental:  "rental",
	model.ServiceSale:    "sale",
	model.ServiceStorage: "storage",
}

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, createShopsTable); err != nil {
		return nil, fmt.Errorf("create shops table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// ListShopsQuery returns the SQL used for a service filter.
func ListShopsQuery(service model.ServiceFilter) string {
	q := selectShops
	if c, ok := serviceColumn[service]; ok {
		q += " AND " + c + " = true"
	}
	return q + " ORDER BY id"
}

func (p *Postgres) ListShops(ctx context.Context, service model.ServiceFilter) ([]model.Shop, error) {
	rows, err := p.pool.Query(ctx, ListShopsQuery(service), model.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("query shops: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Shop, error) {
		var s model.Shop
		err := row.Scan(&s.ID, &s.Name, &s.Repair, &s.Rental, &s.Sale, &s.Storage,
			&s.Address, &s.PostalCode, &s.City, &s.Phone, &s.Website, &s.Notes,
			&s.Lat, &s.Lon, &s.Status)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan shops: %w", err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM shops").Scan(&n); err != nil {
		return 0, fmt.Errorf("count shops: %w", err)
	}
	return n, nil
}

// Insert stores s and returns it with its generated id.
func (p *Postgres) Insert(ctx context.Context, s model.Shop) (model.Shop, error) {
	if s.Status == "" {
		s.Status = model.StatusApproved
	}
	err := p.pool.QueryRow(ctx, `INSERT INTO shops(name, repair, rental, sale, storage, address,
		postal_code, city, phone, website, notes, lat, lon, status)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		s.Name, s.Repair, s.Rental, s.Sale, s.Storage, s.Address, s.PostalCode, s.City,
		s.Phone, s.Website, s.Notes, s.Lat, s.Lon, s.Status).Scan(&s.ID)
	if err != nil {
		return model.Shop{}, fmt.Errorf("insert shop: %w", err)
	}
	return s, nil
}

func (p *Postgres) Close() { p.pool.Close() }
