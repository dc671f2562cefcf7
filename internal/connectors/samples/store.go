package samples

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-sample-plates-report/internal/config"
	"go-sample-plates-report/internal/platedata"
)

// Store reads sample plates, wells and taxonomy from a SQL database.
type Store struct {
	db           *sql.DB
	dialect      dialect
	queryTimeout time.Duration
	location     string
}

type dialect struct {
	name string
	// bind returns the placeholder for the n-th (1-based) query argument;
	// nil keeps the ? form.
	bind func(n int) string
}

func dollarNumbers(n int) string { return "$" + strconv.Itoa(n) }

// Open connects to the SQL source selected by cfg.DataSource.
func Open(cfg config.Config) (*Store, error) {
	switch cfg.DataSource {
	case config.SourceSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.SourceMySQL:
		return NewMySQLStore(cfg)
	case config.SourcePostgres:
		return NewPostgresStore(cfg)
	}
	return nil, fmt.Errorf("data source %q is not a SQL source", cfg.DataSource)
}

func newStore(db *sql.DB, d dialect, location string, connTimeout, queryTimeout time.Duration) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	return &Store{db: db, dialect: d, queryTimeout: queryTimeout, location: location}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Kind names the database driver behind the store.
func (s *Store) Kind() string { return s.dialect.name }

// EnsureSchema creates the report tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	// Tables created before rows kept their import position lack seq.
	for _, table := range []string{"sample_plates", "sample_wells"} {
		if _, err := s.db.ExecContext(ctx, `SELECT seq FROM `+table+` WHERE 1 = 0`); err == nil {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE `+table+` ADD COLUMN seq INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add %s.seq: %w", table, err)
		}
	}
	return nil
}

var schemaStatements = []string{`
CREATE TABLE IF NOT EXISTS sample_plates (
  plate_id VARCHAR(64) NOT NULL PRIMARY KEY,
  local_no INTEGER,
  seq INTEGER NOT NULL DEFAULT 0,
  entry_date VARCHAR(32),
  local_id VARCHAR(64),
  protocol VARCHAR(255),
  notes TEXT
);`, `
CREATE TABLE IF NOT EXISTS sample_wells (
  plate_id VARCHAR(64) NOT NULL,
  well VARCHAR(8) NOT NULL,
  well_no INTEGER,
  seq INTEGER NOT NULL DEFAULT 0,
  picogreen_id VARCHAR(64),
  sample_id VARCHAR(64),
  sci_name VARCHAR(255),
  family VARCHAR(255),
  genus VARCHAR(255),
  source_plate VARCHAR(64),
  concentration VARCHAR(32),
  total_dna VARCHAR(32),
  mean_yield VARCHAR(32),
  seq_returned INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (plate_id, well)
);`, `
CREATE TABLE IF NOT EXISTS taxonomy (
  sci_name VARCHAR(255) NOT NULL PRIMARY KEY,
  family VARCHAR(255),
  genus VARCHAR(255),
  imaged INTEGER NOT NULL DEFAULT 0
);`,
}

// LoadDataset reads every plate in local number order, the wells of each
// plate in well order, and the taxonomy. Rows without a number keep the
// order they were imported in and follow the numbered ones.
func (s *Store) LoadDataset(ctx context.Context) (*platedata.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	plates, err := s.plates(ctx)
	if err != nil {
		return nil, err
	}
	wells, err := s.wells(ctx)
	if err != nil {
		return nil, err
	}
	taxa, err := s.Taxa(ctx)
	if err != nil {
		return nil, err
	}
	return &platedata.Dataset{Plates: plates, Wells: wells, Taxa: taxa}, nil
}

func (s *Store) plates(ctx context.Context) ([]platedata.Plate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT plate_id, local_no, entry_date, local_id, protocol, notes
FROM sample_plates
ORDER BY CASE WHEN local_no IS NULL THEN 1 ELSE 0 END, local_no, seq, plate_id;
`)
	if err != nil {
		return nil, fmt.Errorf("query plates: %w", err)
	}
	defer rows.Close()

	out := make([]platedata.Plate, 0, 64)
	for rows.Next() {
		var p platedata.Plate
		var localNo sql.NullInt64
		var entryDate, localID, protocol, notes sql.NullString
		if err := rows.Scan(&p.PlateID, &localNo, &entryDate, &localID, &protocol, &notes); err != nil {
			return nil, fmt.Errorf("scan plate: %w", err)
		}
		if localNo.Valid {
			p.LocalNo = strconv.FormatInt(localNo.Int64, 10)
		}
		p.EntryDate = entryDate.String
		p.LocalID = localID.String
		p.Protocol = protocol.String
		p.Notes = notes.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read plates: %w", err)
	}
	return out, nil
}

func (s *Store) wells(ctx context.Context) (map[string][]platedata.Well, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT plate_id, well, well_no, picogreen_id, sample_id, sci_name, family, genus,
       source_plate, concentration, total_dna, mean_yield, seq_returned
FROM sample_wells
ORDER BY plate_id, CASE WHEN well_no IS NULL THEN 1 ELSE 0 END, well_no, seq, well;
`)
	if err != nil {
		return nil, fmt.Errorf("query wells: %w", err)
	}
	defer rows.Close()

	out := map[string][]platedata.Well{}
	for rows.Next() {
		var w platedata.Well
		var wellNo, seqReturned sql.NullInt64
		var picogreenID, sampleID, sciName, family, genus sql.NullString
		var sourcePlate, concentration, totalDNA, meanYield sql.NullString
		if err := rows.Scan(
			&w.PlateID, &w.Well, &wellNo, &picogreenID, &sampleID, &sciName, &family, &genus,
			&sourcePlate, &concentration, &totalDNA, &meanYield, &seqReturned,
		); err != nil {
			return nil, fmt.Errorf("scan well: %w", err)
		}
		if wellNo.Valid {
			w.WellNo = strconv.FormatInt(wellNo.Int64, 10)
		}
		w.PicogreenID = picogreenID.String
		w.SampleID = sampleID.String
		w.ScientificName = sciName.String
		w.Family = family.String
		w.Genus = genus.String
		w.SourcePlate = sourcePlate.String
		w.Concentration = concentration.String
		w.TotalDNA = totalDNA.String
		w.MeanYield = meanYield.String
		w.SeqReturned = seqReturned.Valid && seqReturned.Int64 != 0
		out[w.PlateID] = append(out[w.PlateID], w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read wells: %w", err)
	}
	return out, nil
}

// Taxa returns the taxonomy with its imaging flag, sorted by family, genus
// and scientific name.
func (s *Store) Taxa(ctx context.Context) ([]platedata.Taxon, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT family, genus, sci_name, imaged
FROM taxonomy
ORDER BY family, genus, sci_name;
`)
	if err != nil {
		return nil, fmt.Errorf("query taxonomy: %w", err)
	}
	defer rows.Close()

	var out []platedata.Taxon
	for rows.Next() {
		var t platedata.Taxon
		var family, genus sql.NullString
		var imaged sql.NullInt64
		if err := rows.Scan(&family, &genus, &t.ScientificName, &imaged); err != nil {
			return nil, fmt.Errorf("scan taxon: %w", err)
		}
		t.Family = family.String
		t.Genus = genus.String
		t.Imaged = imaged.Valid && imaged.Int64 != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return out, nil
}

// ImportStats counts the rows written by ImportDataset.
type ImportStats struct {
	Plates int `json:"plates"`
	Wells  int `json:"wells"`
	Taxa   int `json:"taxa"`
}

// ImportDataset replaces every plate in ds, with its wells, and every taxon
// in ds. Rows for plates not in ds are left alone. The import runs in one
// transaction.
func (s *Store) ImportDataset(ctx context.Context, ds *platedata.Dataset) (ImportStats, error) {
	var stats ImportStats
	if ds == nil {
		return stats, errors.New("dataset required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, p := range ds.Plates {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sample_wells WHERE plate_id = ?`), p.PlateID); err != nil {
			return stats, fmt.Errorf("clear wells of %s: %w", p.PlateID, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sample_plates WHERE plate_id = ?`), p.PlateID); err != nil {
			return stats, fmt.Errorf("clear plate %s: %w", p.PlateID, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO sample_plates (plate_id, local_no, seq, entry_date, local_id, protocol, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
			p.PlateID, nullInt(p.LocalNo), i, p.EntryDate, p.LocalID, p.Protocol, p.Notes,
		); err != nil {
			return stats, fmt.Errorf("insert plate %s: %w", p.PlateID, err)
		}
		stats.Plates++

		for j, w := range ds.WellsFor(p.PlateID) {
			returned := 0
			if w.SeqReturned {
				returned = 1
			}
			if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO sample_wells (plate_id, well, well_no, seq, picogreen_id, sample_id, sci_name, family, genus,
  source_plate, concentration, total_dna, mean_yield, seq_returned)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				p.PlateID, w.Well, nullInt(w.WellNo), j, w.PicogreenID, w.SampleID, w.ScientificName, w.Family, w.Genus,
				w.SourcePlate, w.Concentration, w.TotalDNA, w.MeanYield, returned,
			); err != nil {
				return stats, fmt.Errorf("insert well %s/%s: %w", p.PlateID, w.Well, err)
			}
			stats.Wells++
		}
	}

	for _, t := range ds.Taxa {
		if strings.TrimSpace(t.ScientificName) == "" {
			continue
		}
		imaged := 0
		if t.Imaged {
			imaged = 1
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM taxonomy WHERE sci_name = ?`), t.ScientificName); err != nil {
			return stats, fmt.Errorf("clear taxon %s: %w", t.ScientificName, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO taxonomy (sci_name, family, genus, imaged) VALUES (?, ?, ?, ?)`),
			t.ScientificName, t.Family, t.Genus, imaged,
		); err != nil {
			return stats, fmt.Errorf("insert taxon %s: %w", t.ScientificName, err)
		}
		stats.Taxa++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit import: %w", err)
	}
	return stats, nil
}

// q rewrites ? placeholders for the store's driver.
func (s *Store) q(query string) string {
	if s.dialect.bind == nil {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.bind(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullInt(raw string) sql.NullInt64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
