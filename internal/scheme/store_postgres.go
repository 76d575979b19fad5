package scheme

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sevasetu/pkg/platform/sentinel"
)

// PostgresStore persists scheme versions in an append-only table. Version
// allocation runs inside a transaction holding a row lock on the scheme's
// latest version, which serializes writers per scheme id while readers proceed
// unblocked.
//
// Schema:
//
//	CREATE TABLE scheme_versions (
//	    scheme_id   TEXT        NOT NULL,
//	    version     INT         NOT NULL,
//	    name        TEXT        NOT NULL,
//	    description TEXT        NOT NULL DEFAULT '',
//	    rules       JSONB       NOT NULL,
//	    active      BOOLEAN     NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (scheme_id, version)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// rulesDoc is the JSONB payload; the scheme id, version, active flag and
// timestamp live in columns so they stay queryable.
type rulesDoc struct {
	Criteria          []Criterion     `json:"criteria"`
	Exclusions        []ExclusionRule `json:"exclusions"`
	RequiredDocuments []string        `json:"required_documents"`
}

func (s *PostgresStore) GetCurrent(ctx context.Context, schemeID string) (SchemeVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT scheme_id, version, name, description, rules, active, created_at
		   FROM scheme_versions WHERE scheme_id = $1 AND active = TRUE`, schemeID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SchemeVersion{}, fmt.Errorf("no active version for scheme %q: %w", schemeID, sentinel.ErrNotFound)
	}
	return v, err
}

func (s *PostgresStore) GetVersion(ctx context.Context, schemeID string, version int) (SchemeVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT scheme_id, version, name, description, rules, active, created_at
		   FROM scheme_versions WHERE scheme_id = $1 AND version = $2`, schemeID, version)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SchemeVersion{}, fmt.Errorf("scheme %q version %d: %w", schemeID, version, sentinel.ErrNotFound)
	}
	return v, err
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]SchemeVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scheme_id, version, name, description, rules, active, created_at
		   FROM scheme_versions WHERE active = TRUE ORDER BY scheme_id`)
	if err != nil {
		return nil, fmt.Errorf("list active schemes: %w", err)
	}
	defer rows.Close()
	return collectVersions(rows)
}

func (s *PostgresStore) ListVersions(ctx context.Context, schemeID string) ([]SchemeVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scheme_id, version, name, description, rules, active, created_at
		   FROM scheme_versions WHERE scheme_id = $1 ORDER BY version`, schemeID)
	if err != nil {
		return nil, fmt.Errorf("list versions for scheme %q: %w", schemeID, err)
	}
	defer rows.Close()
	versions, err := collectVersions(rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("scheme %q: %w", schemeID, sentinel.ErrNotFound)
	}
	return versions, nil
}

func (s *PostgresStore) PutNewVersion(ctx context.Context, schemeID string, rules RuleSet) (SchemeVersion, error) {
	if schemeID == "" {
		return SchemeVersion{}, fmt.Errorf("%w: scheme id is required", sentinel.ErrValidation)
	}
	if err := rules.Validate(); err != nil {
		return SchemeVersion{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SchemeVersion{}, fmt.Errorf("begin version allocation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Advisory lock keyed on the scheme id serializes allocation per scheme
	// without blocking readers or writers of other schemes.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, schemeID); err != nil {
		return SchemeVersion{}, fmt.Errorf("lock scheme %q for allocation: %w", schemeID, err)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM scheme_versions WHERE scheme_id = $1`,
		schemeID).Scan(&next)
	if err != nil {
		return SchemeVersion{}, fmt.Errorf("allocate version for scheme %q: %w", schemeID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scheme_versions SET active = FALSE WHERE scheme_id = $1 AND active = TRUE`,
		schemeID); err != nil {
		return SchemeVersion{}, fmt.Errorf("deactivate prior version: %w", err)
	}

	doc, err := json.Marshal(rulesDoc{
		Criteria:          rules.Criteria,
		Exclusions:        rules.Exclusions,
		RequiredDocuments: rules.RequiredDocuments,
	})
	if err != nil {
		return SchemeVersion{}, fmt.Errorf("marshal rules: %w", err)
	}

	var v SchemeVersion
	row := tx.QueryRowContext(ctx,
		`INSERT INTO scheme_versions (scheme_id, version, name, description, rules, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		 RETURNING scheme_id, version, name, description, rules, active, created_at`,
		schemeID, next, rules.Name, rules.Description, doc)
	v, err = scanVersion(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return SchemeVersion{}, fmt.Errorf("version allocation race on scheme %q: %w", schemeID, sentinel.ErrConflict)
		}
		return SchemeVersion{}, fmt.Errorf("insert scheme version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SchemeVersion{}, fmt.Errorf("commit version allocation: %w", err)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (SchemeVersion, error) {
	var v SchemeVersion
	var doc []byte
	if err := row.Scan(&v.SchemeID, &v.Version, &v.Name, &v.Description, &doc, &v.Active, &v.CreatedAt); err != nil {
		return SchemeVersion{}, err
	}
	var rules rulesDoc
	if err := json.Unmarshal(doc, &rules); err != nil {
		return SchemeVersion{}, fmt.Errorf("unmarshal rules for scheme %q v%d: %w", v.SchemeID, v.Version, err)
	}
	v.Criteria = rules.Criteria
	v.Exclusions = rules.Exclusions
	v.RequiredDocuments = rules.RequiredDocuments
	return v, nil
}

func collectVersions(rows *sql.Rows) ([]SchemeVersion, error) {
	var out []SchemeVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
