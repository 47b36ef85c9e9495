package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"

	"discount-harvester/models"
)

// PostgresMirror copies persisted harvest rows and discrepancy reports into
// PostgreSQL for downstream querying. The xlsx files stay authoritative.
type PostgresMirror struct {
	db *sql.DB
}

// NewPostgresMirror opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresMirror.
func NewPostgresMirror(dsn string) (*PostgresMirror, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: ping failed after retries")
	}

	pm := &PostgresMirror{db: db}
	if err := pm.migrate(); err != nil {
		return nil, eris.Wrap(err, "postgres: migrate")
	}

	return pm, nil
}

func (pm *PostgresMirror) migrate() error {
	_, err := pm.db.Exec(`
		CREATE TABLE IF NOT EXISTS harvest_records (
			id          SERIAL PRIMARY KEY,
			collected   DATE        NOT NULL,
			brand       TEXT        NOT NULL,
			model_year  VARCHAR(4)  NOT NULL DEFAULT '',
			series      TEXT        NOT NULL,
			fuel_type   VARCHAR(10) NOT NULL DEFAULT '',
			model       TEXT        NOT NULL,
			msrp        TEXT        NOT NULL DEFAULT '',
			cash_off    TEXT        NOT NULL DEFAULT '',
			finance_off TEXT        NOT NULL DEFAULT '',
			validated   VARCHAR(1)  NOT NULL DEFAULT '',
			UNIQUE (collected, brand, series, model_year, model)
		);

		CREATE TABLE IF NOT EXISTS discrepancies (
			id              SERIAL PRIMARY KEY,
			report_date     DATE NOT NULL,
			brand           TEXT NOT NULL,
			series          TEXT NOT NULL,
			model_year      VARCHAR(4) NOT NULL DEFAULT '',
			model           TEXT NOT NULL,
			web_msrp        TEXT NOT NULL DEFAULT '',
			web_off         TEXT NOT NULL DEFAULT '',
			app_msrp        TEXT NOT NULL DEFAULT '',
			app_cash_off    TEXT NOT NULL DEFAULT '',
			app_finance_off TEXT NOT NULL DEFAULT '',
			issue           TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_harvest_collected ON harvest_records(collected);
		CREATE INDEX IF NOT EXISTS idx_harvest_brand     ON harvest_records(brand);
		CREATE INDEX IF NOT EXISTS idx_discrepancy_date  ON discrepancies(report_date);
	`)
	return err
}

// MirrorHarvest batch-inserts harvest rows; rows already mirrored are ignored.
func (pm *PostgresMirror) MirrorHarvest(records []models.HarvestRecord) error {
	const cols = 10
	return pm.inBatches(len(records), func(lo, hi int) error {
		args := make([]interface{}, 0, (hi-lo)*cols)
		for _, r := range records[lo:hi] {
			collected := time.Date(r.CollectedYear, time.Month(r.CollectedMonth), r.CollectedDay, 0, 0, 0, 0, time.UTC)
			args = append(args, collected, r.Brand, r.ModelYear, r.Series, string(r.FuelType),
				r.Model, r.MSRP, r.CashOff, r.FinanceOff, r.Validated)
		}
		query := fmt.Sprintf(`
			INSERT INTO harvest_records
				(collected, brand, model_year, series, fuel_type, model, msrp, cash_off, finance_off, validated)
			VALUES %s
			ON CONFLICT (collected, brand, series, model_year, model) DO NOTHING
		`, placeholders(hi-lo, cols))
		_, err := pm.db.Exec(query, args...)
		return err
	})
}

// MirrorDiscrepancies replaces the report rows of day.
func (pm *PostgresMirror) MirrorDiscrepancies(day time.Time, records []models.DiscrepancyRecord) error {
	reportDate := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if _, err := pm.db.Exec(`DELETE FROM discrepancies WHERE report_date = $1`, reportDate); err != nil {
		return eris.Wrap(err, "postgres: clear discrepancies")
	}

	const cols = 11
	return pm.inBatches(len(records), func(lo, hi int) error {
		args := make([]interface{}, 0, (hi-lo)*cols)
		for _, r := range records[lo:hi] {
			args = append(args, reportDate, r.Brand, r.Series, r.ModelYear, r.Model,
				r.WebMSRP, r.WebOff, r.AppMSRP, r.AppCashOff, r.AppFinanceOff, r.Issue)
		}
		query := fmt.Sprintf(`
			INSERT INTO discrepancies
				(report_date, brand, series, model_year, model, web_msrp, web_off,
				 app_msrp, app_cash_off, app_finance_off, issue)
			VALUES %s
		`, placeholders(hi-lo, cols))
		_, err := pm.db.Exec(query, args...)
		return err
	})
}

func (pm *PostgresMirror) inBatches(n int, insert func(lo, hi int) error) error {
	const batchSize = 50
	for i := 0; i < n; i += batchSize {
		end := i + batchSize
		if end > n {
			end = n
		}
		if err := insert(i, end); err != nil {
			return eris.Wrap(err, "postgres: insert batch")
		}
	}
	return nil
}

// placeholders renders "($1,$2),($3,$4)" for rows×cols positional arguments.
func placeholders(rows, cols int) string {
	valueStrings := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		ph := make([]string, cols)
		for c := 0; c < cols; c++ {
			ph[c] = fmt.Sprintf("$%d", r*cols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
	}
	return strings.Join(valueStrings, ",")
}

func (pm *PostgresMirror) Close() error {
	return pm.db.Close()
}
