package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hearthview/tabletop/internal/fact"
)

// Release describes one stored image row.
type Release struct {
	Release   string
	UpdatedAt time.Time
	Size      int64 // image size in bytes
}

// Releases lists the stored images, newest first.
func (g *Gateway) Releases(ctx context.Context) ([]Release, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT release, updated_at, length(data)
		FROM releases
		ORDER BY updated_at ASC, release ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var out []Release
	for rows.Next() {
		var r Release
		var negMillis int64
		if err := rows.Scan(&r.Release, &negMillis, &r.Size); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		r.UpdatedAt = time.UnixMilli(-negMillis)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	return out, nil
}

// ReadRelease decodes the facts stored for one release. An empty release
// reads the newest row. The returned string names the row actually read.
func (g *Gateway) ReadRelease(ctx context.Context, release string, schema fact.Schema) ([]fact.Fact, string, error) {
	var data []byte
	if release == "" {
		err := g.db.QueryRowContext(ctx, `
			SELECT release, data FROM releases
			ORDER BY updated_at ASC, release ASC
			LIMIT 1
		`).Scan(&release, &data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("no stored releases")
		}
		if err != nil {
			return nil, "", fmt.Errorf("read newest release: %w", err)
		}
	} else {
		err := g.db.QueryRowContext(ctx,
			`SELECT data FROM releases WHERE release = ?`, release).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("release %q not stored", release)
		}
		if err != nil {
			return nil, "", fmt.Errorf("read release %q: %w", release, err)
		}
	}

	facts, err := fact.DecodeFacts(schema, data)
	if err != nil {
		return nil, "", fmt.Errorf("decode release %q: %w", release, err)
	}
	return facts, release, nil
}
