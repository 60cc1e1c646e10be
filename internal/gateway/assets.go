package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrAssetNotFound reports a checksum with no stored bytes.
var ErrAssetNotFound = errors.New("gateway: asset not found")

// Asset is one stored image, keyed by the checksum the fact set carries.
type Asset struct {
	Checksum string `json:"checksum"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Data     []byte `json:"data"`
}

// PutAsset upserts the asset's bytes. Re-registering a checksum refreshes
// the name, matching how the image libraries treat re-registration.
func (g *Gateway) PutAsset(ctx context.Context, a Asset) error {
	if a.Checksum == "" {
		return fmt.Errorf("put asset: empty checksum")
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO assets (checksum, name, size, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(checksum) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			data = excluded.data
	`, a.Checksum, a.Name, a.Size, a.Data)
	if err != nil {
		return fmt.Errorf("put asset %q: %w", a.Checksum, err)
	}
	return nil
}

// GetAsset returns the asset stored under checksum, or ErrAssetNotFound.
func (g *Gateway) GetAsset(ctx context.Context, checksum string) (Asset, error) {
	a := Asset{Checksum: checksum}
	err := g.db.QueryRowContext(ctx, `
		SELECT name, size, data FROM assets WHERE checksum = ?
	`, checksum).Scan(&a.Name, &a.Size, &a.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("get asset %q: %w", checksum, ErrAssetNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("get asset %q: %w", checksum, err)
	}
	return a, nil
}

// ListAssets returns every stored asset in deterministic order.
func (g *Gateway) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT checksum, name, size, data
		FROM assets
		ORDER BY name ASC, checksum ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Checksum, &a.Name, &a.Size, &a.Data); err != nil {
			return nil, fmt.Errorf("list assets: scan: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: iterate: %w", err)
	}
	return assets, nil
}
