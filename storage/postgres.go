package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"find_my_home/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so every store
// method runs either directly on the pool or inside a session.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Session is a transaction-bound view of the store. Every method called
// through the embedded store runs inside the transaction.
type Session struct {
	*PostgresStore
	tx pgx.Tx
}

func (s *PostgresStore) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Session{
		PostgresStore: &PostgresStore{pool: s.pool, db: tx},
		tx:            tx,
	}, nil
}

func (s *Session) Commit(ctx context.Context) error {
	return s.tx.Commit(ctx)
}

// Rollback is a no-op after Commit, safe in defer.
func (s *Session) Rollback(ctx context.Context) {
	_ = s.tx.Rollback(ctx)
}

// WithSavepoint runs fn against a nested transaction. Postgres aborts a
// transaction on the first failed statement, so per-row writes that are
// allowed to fail must go through here or they poison the whole session.
func (s *Session) WithSavepoint(ctx context.Context, fn func(*PostgresStore) error) error {
	nested, err := s.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(&PostgresStore{pool: s.pool, db: nested}); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	return nested.Commit(ctx)
}

// =============================================================================
// Complexes
// =============================================================================

// UpsertComplex inserts or refreshes a complex keyed on its external id.
// Nullable metadata fills in over time; the stored name is never
// overwritten once set.
func (s *PostgresStore) UpsertComplex(ctx context.Context, c *models.Complex) error {
	query := `
		INSERT INTO complexes (
			id, external_id, name, region_code, address, kb_complex_id, lat, lon,
			total_households, completion_year, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (external_id) DO UPDATE SET
			region_code = COALESCE(NULLIF(EXCLUDED.region_code, ''), complexes.region_code),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), complexes.address),
			kb_complex_id = COALESCE(EXCLUDED.kb_complex_id, complexes.kb_complex_id),
			lat = COALESCE(EXCLUDED.lat, complexes.lat),
			lon = COALESCE(EXCLUDED.lon, complexes.lon),
			total_households = COALESCE(EXCLUDED.total_households, complexes.total_households),
			completion_year = COALESCE(EXCLUDED.completion_year, complexes.completion_year),
			updated_at = NOW()
		RETURNING id`

	return s.db.QueryRow(ctx, query,
		c.ID, c.ExternalID, c.Name, c.RegionCode, c.Address, c.KBComplexID, c.Lat, c.Lon,
		c.TotalHouseholds, c.CompletionYear,
	).Scan(&c.ID)
}

const complexColumns = `id, external_id, name, region_code, address, kb_complex_id, lat, lon,
		total_households, completion_year, created_at, updated_at`

func scanComplex(row pgx.Row) (*models.Complex, error) {
	var c models.Complex
	err := row.Scan(
		&c.ID, &c.ExternalID, &c.Name, &c.RegionCode, &c.Address, &c.KBComplexID, &c.Lat, &c.Lon,
		&c.TotalHouseholds, &c.CompletionYear, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetComplexByExternalID(ctx context.Context, externalID string) (*models.Complex, error) {
	query := `SELECT ` + complexColumns + ` FROM complexes WHERE external_id = $1`
	return scanComplex(s.db.QueryRow(ctx, query, externalID))
}

func (s *PostgresStore) collectComplexes(rows pgx.Rows) ([]*models.Complex, error) {
	defer rows.Close()
	var out []*models.Complex
	for rows.Next() {
		var c models.Complex
		err := rows.Scan(
			&c.ID, &c.ExternalID, &c.Name, &c.RegionCode, &c.Address, &c.KBComplexID, &c.Lat, &c.Lon,
			&c.TotalHouseholds, &c.CompletionYear, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListComplexesByDistrict returns complexes whose 10-digit region code
// starts with the 5-digit district code.
func (s *PostgresStore) ListComplexesByDistrict(ctx context.Context, districtCode string) ([]*models.Complex, error) {
	query := `SELECT ` + complexColumns + ` FROM complexes WHERE region_code LIKE $1 || '%' ORDER BY name`
	rows, err := s.db.Query(ctx, query, districtCode)
	if err != nil {
		return nil, err
	}
	return s.collectComplexes(rows)
}

// ListComplexesWithRegionCode returns every complex carrying a usable
// 10-digit region code, the eligibility test for KB batch collection.
func (s *PostgresStore) ListComplexesWithRegionCode(ctx context.Context) ([]*models.Complex, error) {
	query := `SELECT ` + complexColumns + ` FROM complexes WHERE length(region_code) = 10 ORDER BY region_code, name`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.collectComplexes(rows)
}

func (s *PostgresStore) SetComplexKBID(ctx context.Context, id uuid.UUID, kbComplexID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE complexes SET kb_complex_id = $2, updated_at = NOW() WHERE id = $1`,
		id, kbComplexID)
	return err
}

func (s *PostgresStore) CountComplexes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM complexes`).Scan(&n)
	return n, err
}

// =============================================================================
// Listings
// =============================================================================

func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (
			id, complex_id, external_id, trade_type, price, area_sqm, floor,
			direction, description, registered_at, is_active, first_seen,
			last_seen, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, NOW(), NOW(), NOW(), NOW())
		ON CONFLICT (external_id) DO UPDATE SET
			price = EXCLUDED.price,
			area_sqm = COALESCE(EXCLUDED.area_sqm, listings.area_sqm),
			floor = COALESCE(EXCLUDED.floor, listings.floor),
			direction = COALESCE(NULLIF(EXCLUDED.direction, ''), listings.direction),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), listings.description),
			registered_at = COALESCE(EXCLUDED.registered_at, listings.registered_at),
			is_active = TRUE,
			last_seen = NOW(),
			updated_at = NOW()
		RETURNING id`

	return s.db.QueryRow(ctx, query,
		l.ID, l.ComplexID, l.ExternalID, l.TradeType, l.Price, l.AreaSqm, l.Floor,
		l.Direction, l.Description, l.RegisteredAt,
	).Scan(&l.ID)
}

// DeactivateMissingListings marks a complex's active listings inactive when
// their article numbers did not appear in the latest crawl.
func (s *PostgresStore) DeactivateMissingListings(ctx context.Context, complexID uuid.UUID, seenExternalIDs []string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE listings SET is_active = FALSE, updated_at = NOW()
		WHERE complex_id = $1 AND is_active AND NOT (external_id = ANY($2))`,
		complexID, seenExternalIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// BulkDeactivateListings marks every active listing under the given portal
// complex numbers inactive, for complexes whose summary reported zero deals.
func (s *PostgresStore) BulkDeactivateListings(ctx context.Context, externalIDs []string) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE listings SET is_active = FALSE, updated_at = NOW()
		FROM complexes c
		WHERE listings.complex_id = c.id AND listings.is_active
		  AND c.external_id = ANY($1)`,
		externalIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ActiveListingCounts maps portal complex numbers to their active listing
// count, scoped to the given complex numbers.
func (s *PostgresStore) ActiveListingCounts(ctx context.Context, externalIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(externalIDs) == 0 {
		return counts, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT c.external_id, COUNT(l.id)
		FROM complexes c
		JOIN listings l ON l.complex_id = c.id AND l.is_active
		WHERE c.external_id = ANY($1)
		GROUP BY c.external_id`,
		externalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// Appraisal prices
// =============================================================================

func (s *PostgresStore) UpsertAppraisalPrice(ctx context.Context, p *models.AppraisalPrice) error {
	query := `
		INSERT INTO appraisal_prices (complex_id, area_sqm, price_low, price_mid, price_high, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (complex_id, area_sqm) DO UPDATE SET
			price_low = EXCLUDED.price_low,
			price_mid = EXCLUDED.price_mid,
			price_high = EXCLUDED.price_high,
			updated_at = NOW()
		RETURNING id`

	return s.db.QueryRow(ctx, query,
		p.ComplexID, p.AreaSqm, p.PriceLow, p.PriceMid, p.PriceHigh,
	).Scan(&p.ID)
}

// ListAppraisalPricesWithMid returns every appraisal row that carries a
// midpoint, the comparison engine's input set.
func (s *PostgresStore) ListAppraisalPricesWithMid(ctx context.Context) ([]*models.AppraisalPrice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, complex_id, area_sqm, price_low, price_mid, price_high, updated_at
		FROM appraisal_prices WHERE price_mid IS NOT NULL
		ORDER BY complex_id, area_sqm`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.AppraisalPrice
	for rows.Next() {
		var p models.AppraisalPrice
		err := rows.Scan(&p.ID, &p.ComplexID, &p.AreaSqm, &p.PriceLow, &p.PriceMid, &p.PriceHigh, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// =============================================================================
// Transactions
// =============================================================================

// InsertTransaction stores a deal unless its fingerprint (complex, area,
// floor with NULLs equal, date, price) already exists. Reports whether a
// row was written.
func (s *PostgresStore) InsertTransaction(ctx context.Context, t *models.Transaction) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO transactions (complex_id, apt_name, region_code, area_sqm, floor, deal_date, deal_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (complex_id, area_sqm, (COALESCE(floor, -1)), deal_date, deal_price) DO NOTHING`,
		t.ComplexID, t.AptName, t.RegionCode, t.AreaSqm, t.Floor, t.DealDate, t.DealPrice)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LatestDealNear returns the most recent deal for a complex with an area
// within tolerance of areaSqm on or after since, or nil.
func (s *PostgresStore) LatestDealNear(ctx context.Context, complexID uuid.UUID, areaSqm, tolerance float64, since time.Time) (*models.Transaction, error) {
	query := `
		SELECT id, complex_id, apt_name, region_code, area_sqm, floor, deal_date, deal_price, created_at
		FROM transactions
		WHERE complex_id = $1
		  AND area_sqm BETWEEN $2 AND $3
		  AND deal_date >= $4
		ORDER BY deal_date DESC, deal_price DESC
		LIMIT 1`

	var t models.Transaction
	err := s.db.QueryRow(ctx, query, complexID, areaSqm-tolerance, areaSqm+tolerance, since).Scan(
		&t.ID, &t.ComplexID, &t.AptName, &t.RegionCode, &t.AreaSqm, &t.Floor,
		&t.DealDate, &t.DealPrice, &t.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountDealsNear counts deals in the same window LatestDealNear searches.
func (s *PostgresStore) CountDealsNear(ctx context.Context, complexID uuid.UUID, areaSqm, tolerance float64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE complex_id = $1 AND area_sqm BETWEEN $2 AND $3 AND deal_date >= $4`,
		complexID, areaSqm-tolerance, areaSqm+tolerance, since).Scan(&n)
	return n, err
}

// =============================================================================
// Comparisons
// =============================================================================

func (s *PostgresStore) UpsertComparison(ctx context.Context, c *models.Comparison) error {
	query := `
		INSERT INTO comparisons (
			complex_id, area_sqm, appraisal_mid, latest_deal_price, latest_deal_date,
			discount_rate, deal_count_3m, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (complex_id, area_sqm) DO UPDATE SET
			appraisal_mid = EXCLUDED.appraisal_mid,
			latest_deal_price = EXCLUDED.latest_deal_price,
			latest_deal_date = EXCLUDED.latest_deal_date,
			discount_rate = EXCLUDED.discount_rate,
			deal_count_3m = EXCLUDED.deal_count_3m,
			computed_at = NOW()
		RETURNING id`

	return s.db.QueryRow(ctx, query,
		c.ComplexID, c.AreaSqm, c.AppraisalMid, c.LatestDealPrice, c.LatestDealDate,
		c.DiscountRate, c.DealCount3M,
	).Scan(&c.ID)
}

// =============================================================================
// Collect runs
// =============================================================================

func (s *PostgresStore) CreateCollectRun(ctx context.Context, r *models.CollectRun) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO collect_runs (source, started_at, status)
		VALUES ($1, NOW(), $2)
		RETURNING id, started_at`,
		r.Source, models.RunStatusRunning).Scan(&r.ID, &r.StartedAt)
}

func (s *PostgresStore) FinishCollectRun(ctx context.Context, r *models.CollectRun) error {
	_, err := s.db.Exec(ctx, `
		UPDATE collect_runs SET
			finished_at = NOW(), status = $2, fetched = $3, saved = $4,
			duplicates = $5, auto_created = $6, errors_count = $7,
			error_message = $8, metadata = $9
		WHERE id = $1`,
		r.ID, r.Status, r.Fetched, r.Saved, r.Duplicates, r.AutoCreated,
		r.ErrorsCount, r.ErrorMessage, r.Metadata)
	return err
}
