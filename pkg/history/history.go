// Package history records delivered recognition outcomes in Postgres.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// Record is one stored outcome.
type Record struct {
	ID         int64
	CreatedAt  time.Time
	Source     string
	ImageHash  string
	Engine     string
	Text       string
	Confidence float64
	ElapsedMS  int64
	Error      string
}

// NewRecord builds a record from an outcome. img may be nil when the image
// never decoded.
func NewRecord(source string, img *recognition.Image, res recognition.Result, err error) Record {
	r := Record{
		Source:     source,
		Engine:     string(res.Engine),
		Text:       res.Text,
		Confidence: res.Confidence,
		ElapsedMS:  res.Elapsed.Milliseconds(),
	}
	if img != nil {
		r.ImageHash = ImageHash(img)
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// ImageHash is a stable digest of the decoded pixels.
func ImageHash(img *recognition.Image) string {
	h := sha256.New()
	fmt.Fprintf(h, "%dx%d:%s:", img.Width(), img.Height(), img.Format())
	h.Write(img.Pixels())
	return hex.EncodeToString(h.Sum(nil))
}

// Open connects to dsn with the pgx driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty: set DATABASE_URL")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// Repo stores records in the recognitions table.
type Repo struct{ DB *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{DB: db} }

// Migrate creates the table and index when missing.
func (r *Repo) Migrate(ctx context.Context) error {
	const q = `
create table if not exists recognitions (
  id          bigserial primary key,
  created_at  timestamptz not null default now(),
  source      text not null,
  image_hash  text not null default '',
  engine      text not null default '',
  text        text not null default '',
  confidence  double precision not null default 0,
  elapsed_ms  bigint not null default 0,
  error       text not null default ''
);
create index if not exists recognitions_created_at_idx on recognitions (created_at desc);`
	if _, err := r.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate recognitions: %w", err)
	}
	return nil
}

// Save inserts rec and returns its id.
func (r *Repo) Save(ctx context.Context, rec Record) (int64, error) {
	const q = `
insert into recognitions (source, image_hash, engine, text, confidence, elapsed_ms, error)
values ($1,$2,$3,$4,$5,$6,$7)
returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q,
		rec.Source, rec.ImageHash, rec.Engine, rec.Text, rec.Confidence, rec.ElapsedMS, rec.Error,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save recognition: %w", err)
	}
	return id, nil
}

// Recent returns up to limit records, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
select id, created_at, source, image_hash, engine, text, confidence, elapsed_ms, error
from recognitions
order by created_at desc, id desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query recognitions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &rec.ImageHash, &rec.Engine,
			&rec.Text, &rec.Confidence, &rec.ElapsedMS, &rec.Error); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records older than maxAge and returns how many went.
func (r *Repo) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := r.DB.ExecContext(ctx, `delete from recognitions where created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune recognitions: %w", err)
	}
	return res.RowsAffected()
}
