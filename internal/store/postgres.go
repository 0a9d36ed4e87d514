package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/ingest-api/internal/property"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS properties (
            id              BIGSERIAL PRIMARY KEY,
            external_id     TEXT NOT NULL,
            address         TEXT NOT NULL DEFAULT '',
            city            TEXT NOT NULL,
            state           TEXT NOT NULL,
            zip_code        TEXT NOT NULL DEFAULT '',
            price           INTEGER NOT NULL DEFAULT 0,
            bedrooms        SMALLINT NOT NULL DEFAULT 0,
            bathrooms       NUMERIC(3,1) NOT NULL DEFAULT 0,
            square_feet     INTEGER,
            lot_size        INTEGER,
            year_built      SMALLINT,
            property_type   TEXT NOT NULL DEFAULT 'other',
            listing_status  TEXT NOT NULL DEFAULT 'active',
            images          JSONB NOT NULL DEFAULT '[]',
            latitude        DOUBLE PRECISION,
            longitude       DOUBLE PRECISION,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_properties_external_id ON properties(external_id);`,
		`CREATE INDEX IF NOT EXISTS idx_properties_city_state ON properties(city, state);`,
		`CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(listing_status);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

const upsertCols = 17

// UpsertProperties writes the batch in one statement keyed on external_id.
// Conflict policy is overwrite: every mutable field takes the incoming
// value, so re-running an ingest is idempotent.
func (s *Store) UpsertProperties(ctx context.Context, records []property.Persistable) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("nil db")
	}
	if len(records) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO properties
        (external_id, address, city, state, zip_code, price, bedrooms, bathrooms,
         square_feet, lot_size, year_built, property_type, listing_status, images,
         latitude, longitude, updated_at) VALUES `)

	args := make([]any, 0, len(records)*upsertCols)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < upsertCols; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", i*upsertCols+c+1)
		}
		sb.WriteByte(')')

		images, err := json.Marshal(imageList(rec.Images))
		if err != nil {
			return 0, fmt.Errorf("marshal images for %s: %w", rec.ExternalID, err)
		}
		args = append(args,
			rec.ExternalID, rec.Address, rec.City, rec.State, rec.ZipCode,
			rec.Price, rec.Bedrooms, rec.Bathrooms,
			nullInt(rec.SquareFeet), nullInt(rec.LotSize), nullInt(rec.YearBuilt),
			string(rec.PropertyType), string(rec.ListingStatus), string(images),
			nullFloat(rec.Latitude), nullFloat(rec.Longitude), rec.UpdatedAt,
		)
	}

	sb.WriteString(` ON CONFLICT (external_id) DO UPDATE SET
        address=EXCLUDED.address, city=EXCLUDED.city, state=EXCLUDED.state,
        zip_code=EXCLUDED.zip_code, price=EXCLUDED.price, bedrooms=EXCLUDED.bedrooms,
        bathrooms=EXCLUDED.bathrooms, square_feet=EXCLUDED.square_feet,
        lot_size=EXCLUDED.lot_size, year_built=EXCLUDED.year_built,
        property_type=EXCLUDED.property_type, listing_status=EXCLUDED.listing_status,
        images=EXCLUDED.images, latitude=EXCLUDED.latitude, longitude=EXCLUDED.longitude,
        updated_at=EXCLUDED.updated_at`)

	res, err := s.DB.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return int(n), nil
	}
	return len(records), nil
}

// Listing is one row of the read surface behind GET /listings.
type Listing struct {
	ExternalID    string   `json:"external_id"`
	Address       string   `json:"address"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	ZipCode       string   `json:"zip_code"`
	Price         int      `json:"price"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     float64  `json:"bathrooms"`
	PropertyType  string   `json:"property_type"`
	ListingStatus string   `json:"listing_status"`
	Images        []string `json:"images"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RecentListings returns the most recently updated rows, optionally
// filtered by city and/or state.
func (s *Store) RecentListings(ctx context.Context, city, state string, limit int) ([]Listing, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT external_id, address, city, state, zip_code, price, bedrooms, bathrooms,
                 property_type, listing_status, images, updated_at
          FROM properties`
	var (
		conds []string
		args  []any
	)
	if city != "" {
		args = append(args, city)
		conds = append(conds, fmt.Sprintf("city ILIKE $%d", len(args)))
	}
	if state != "" {
		args = append(args, strings.ToUpper(state))
		conds = append(conds, fmt.Sprintf("state = $%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args))

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var (
			l      Listing
			images []byte
		)
		if err := rows.Scan(&l.ExternalID, &l.Address, &l.City, &l.State, &l.ZipCode,
			&l.Price, &l.Bedrooms, &l.Bathrooms, &l.PropertyType, &l.ListingStatus,
			&images, &l.UpdatedAt); err != nil {
			return nil, err
		}
		if len(images) > 0 {
			_ = json.Unmarshal(images, &l.Images)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func imageList(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
