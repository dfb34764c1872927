// Package sqlite writes quantification results to a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Writer handles writing results to SQLite database files
type Writer struct {
	db        *sql.DB
	psmStmt   *sql.Stmt
	scoreStmt *sql.Stmt
	psmID     int
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{db: db, psmID: 1}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS PSMTable (
		PsmId INTEGER PRIMARY KEY,
		Dataset TEXT NOT NULL,
		Scan INTEGER NOT NULL,
		Peptide TEXT NOT NULL,
		Sequence TEXT NOT NULL,
		Accession TEXT,
		Candidates TEXT,
		IsDecoy BOOL,
		PrecursorMZ DOUBLE,
		Charge INTEGER,
		AScore DOUBLE,
		SiteId TEXT,
		SiteStatus TEXT,
		SiteAmbiguous BOOL
	);

	CREATE TABLE IF NOT EXISTS ScoreTable (
		PsmId INTEGER REFERENCES PSMTable(PsmId),
		Name TEXT NOT NULL,
		Value DOUBLE
	);

	CREATE TABLE IF NOT EXISTS CrosstabTable (
		Feature TEXT NOT NULL,
		Measurement TEXT NOT NULL,
		Value DOUBLE
	);

	CREATE TABLE IF NOT EXISTS StageTable (
		StageOrder INTEGER PRIMARY KEY,
		Stage TEXT NOT NULL,
		PSMs INTEGER,
		Peptides INTEGER,
		Accessions INTEGER
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.psmStmt, err = w.db.Prepare(`
		INSERT INTO PSMTable (
			PsmId, Dataset, Scan, Peptide, Sequence, Accession, Candidates, IsDecoy,
			PrecursorMZ, Charge, AScore, SiteId, SiteStatus, SiteAmbiguous
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare PSM statement: %w", err)
	}

	w.scoreStmt, err = w.db.Prepare(`INSERT INTO ScoreTable (PsmId, Name, Value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare score statement: %w", err)
	}

	return nil
}

// nullString maps "" to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// WritePSM writes a single annotated PSM and its scores, ordered by name
func (w *Writer) WritePSM(p *core.PSM) error {
	var precursor, charge, ascore interface{}
	if p.PrecursorMZ > 0 {
		precursor = p.PrecursorMZ
	}
	if p.Charge > 0 {
		charge = p.Charge
	}
	if p.AScore != nil {
		ascore = *p.AScore
	}

	_, err := w.psmStmt.Exec(
		w.psmID,
		p.DatasetID,
		p.ScanID,
		p.Peptide,
		p.Sequence(),
		nullString(p.Accession),
		strings.Join(p.Accessions, ";"),
		p.IsDecoy,
		precursor,
		charge,
		ascore,
		nullString(p.SiteID),
		nullString(string(p.SiteStatus)),
		p.SiteAmbiguous,
	)
	if err != nil {
		return fmt.Errorf("failed to insert PSM %s: %w", p.Name(), err)
	}

	for _, name := range slices.Sorted(maps.Keys(p.Scores)) {
		if _, err := w.scoreStmt.Exec(w.psmID, name, p.Scores[name]); err != nil {
			return fmt.Errorf("failed to insert score %s of PSM %s: %w", name, p.Name(), err)
		}
	}

	w.psmID++
	return nil
}

// WriteStore writes the active PSMs of a store in one transaction
func (w *Writer) WriteStore(s *ident.Store) (err error) {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	psm, score := w.psmStmt, w.scoreStmt
	w.psmStmt, w.scoreStmt = tx.Stmt(psm), tx.Stmt(score)
	defer func() { w.psmStmt, w.scoreStmt = psm, score }()

	for _, p := range s.ActiveRows() {
		if err = w.WritePSM(p); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit PSMs: %w", err)
	}
	return nil
}

// WriteMatrix writes every cell of the matrix; null cells are stored as NULL
func (w *Writer) WriteMatrix(m *crosstab.Matrix) (err error) {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO CrosstabTable (Feature, Measurement, Value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare crosstab statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range m.Rows {
		for j, col := range m.Columns {
			var v interface{}
			if c := m.Cells[i][j]; c.Valid {
				v = c.Value
			}
			if _, err = stmt.Exec(row, col, v); err != nil {
				return fmt.Errorf("failed to insert cell %s/%s: %w", row, col, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crosstab: %w", err)
	}
	return nil
}

// WriteStages writes the diagnostic counts of each filtering stage in order
func (w *Writer) WriteStages(stages []ident.Summary) error {
	for i, s := range stages {
		_, err := w.db.Exec(`
			INSERT INTO StageTable (StageOrder, Stage, PSMs, Peptides, Accessions)
			VALUES (?, ?, ?, ?, ?)
		`, i+1, s.Stage, s.PSMs, s.Peptides, s.Accessions)
		if err != nil {
			return fmt.Errorf("failed to insert stage %s: %w", s.Stage, err)
		}
	}
	return nil
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize(description string) error {
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Description)
		VALUES (?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), description)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	return w.Close()
}

// Close closes the statements and the database without writing the header
func (w *Writer) Close() error {
	if w.psmStmt != nil {
		w.psmStmt.Close()
	}
	if w.scoreStmt != nil {
		w.scoreStmt.Close()
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
