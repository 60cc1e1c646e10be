package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Archive document format. The tag is checked before any write on import
// so a wrong file can never damage an existing database.
const (
	imageFormat  = "tabletop/image"
	imageVersion = 1
)

type imageDoc struct {
	Format   string       `json:"format"`
	Version  int          `json:"version"`
	Releases []releaseDoc `json:"releases"`
	Assets   []Asset      `json:"assets,omitempty"`
}

type releaseDoc struct {
	Release   string          `json:"release"`
	UpdatedAt int64           `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// Export writes the whole database, every release record and every
// asset, as one JSON document.
func (g *Gateway) Export(ctx context.Context, w io.Writer) error {
	doc := imageDoc{Format: imageFormat, Version: imageVersion}

	rows, err := g.db.QueryContext(ctx, `
		SELECT release, updated_at, data
		FROM releases
		ORDER BY updated_at ASC, release ASC
	`)
	if err != nil {
		return fmt.Errorf("export: query releases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rel releaseDoc
		var data []byte
		if err := rows.Scan(&rel.Release, &rel.UpdatedAt, &data); err != nil {
			return fmt.Errorf("export: scan release: %w", err)
		}
		rel.Data = json.RawMessage(data)
		doc.Releases = append(doc.Releases, rel)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("export: iterate releases: %w", err)
	}

	doc.Assets, err = g.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("export: encode document: %w", err)
	}
	return nil
}

// Import replaces the database contents with the document read from r.
// The document is validated first; nothing is written unless the whole
// document checks out, and the table swap itself is one transaction.
// Returns the newest imported release, the one Load would pick.
func (g *Gateway) Import(ctx context.Context, r io.Reader) (string, error) {
	var doc imageDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return "", fmt.Errorf("import: decode document: %w", err)
	}
	if doc.Format != imageFormat {
		return "", fmt.Errorf("import: not a %s document (format %q)", imageFormat, doc.Format)
	}
	if doc.Version != imageVersion {
		return "", fmt.Errorf("import: unsupported document version %d", doc.Version)
	}
	if len(doc.Releases) == 0 {
		return "", fmt.Errorf("import: document holds no releases")
	}

	newest := doc.Releases[0]
	for _, rel := range doc.Releases {
		if rel.Release == "" {
			return "", fmt.Errorf("import: release record without a name")
		}
		if len(rel.Data) == 0 {
			return "", fmt.Errorf("import: release %q has no image data", rel.Release)
		}
		if rel.UpdatedAt < newest.UpdatedAt ||
			(rel.UpdatedAt == newest.UpdatedAt && rel.Release < newest.Release) {
			newest = rel
		}
	}
	for _, a := range doc.Assets {
		if a.Checksum == "" {
			return "", fmt.Errorf("import: asset record without a checksum")
		}
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("import: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range []string{`DELETE FROM releases`, `DELETE FROM assets`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("import: clear tables: %w", err)
		}
	}
	for _, rel := range doc.Releases {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO releases (release, updated_at, data) VALUES (?, ?, ?)
		`, rel.Release, rel.UpdatedAt, []byte(rel.Data))
		if err != nil {
			return "", fmt.Errorf("import: write release %q: %w", rel.Release, err)
		}
	}
	for _, a := range doc.Assets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assets (checksum, name, size, data) VALUES (?, ?, ?, ?)
		`, a.Checksum, a.Name, a.Size, a.Data)
		if err != nil {
			return "", fmt.Errorf("import: write asset %q: %w", a.Checksum, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("import: commit: %w", err)
	}
	return newest.Release, nil
}
