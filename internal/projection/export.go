package projection

import (
	"context"
	"log/slog"
)

// Index addresses one cell of the view.
type Index struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Selection is the hand-off payload of a drag: one locator per distinct
// asset, plus a preview image when one resolves.
type Selection struct {
	IDs        []string `json:"ids"`
	URIs       []string `json:"uris"`
	Preview    string   `json:"preview,omitempty"`
	HasPreview bool     `json:"has_preview"`
}

// URI returns the resource locator of an asset id.
func (v *View) URI(id string) string {
	return v.scheme + "://file/" + id
}

// Export turns selected cells into a Selection. Invalid indices are dropped
// and ids keep their first-seen order.
func (v *View) Export(ctx context.Context, indices []Index) Selection {
	sel := Selection{IDs: []string{}, URIs: []string{}}
	seen := make(map[string]struct{}, len(indices))
	var rows []int

	for _, idx := range indices {
		if idx.Row < 0 || idx.Row >= len(v.rows) || idx.Col < 0 || idx.Col >= NumColumns {
			continue
		}
		id := v.rows[idx.Row]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sel.IDs = append(sel.IDs, id)
		sel.URIs = append(sel.URIs, v.URI(id))
		rows = append(rows, idx.Row)
	}

	if v.thumbs != nil {
		for _, row := range rows {
			if loc, ok := v.thumbs.Resolve(ctx, v.rows[row], nil, false); ok {
				sel.Preview = loc
				sel.HasPreview = true
				break
			}
		}
	}

	v.logger.Debug("projection: exported selection",
		slog.Int("indices", len(indices)), slog.Int("assets", len(sel.IDs)))
	return sel
}
