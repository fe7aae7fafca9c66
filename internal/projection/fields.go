package projection

import (
	"fmt"

	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
)

// Scope is the extent of a change notification.
type Scope int

const (
	// ScopeCell covers the edited cell only.
	ScopeCell Scope = iota
	// ScopeRow covers every column of the row.
	ScopeRow
)

func (s Scope) String() string {
	if s == ScopeCell {
		return "cell"
	}
	return "row"
}

// Column indices of the row layout.
const (
	ColData = iota
	ColName
	ColTags
	ColMediaType
	ColPath
	ColID

	NumColumns
)

// Field describes one column: which asset value it shows, whether it can be
// edited or dragged, and how widely an edit must be announced.
type Field struct {
	Column    int    `json:"column"`
	Key       string `json:"key"`
	Header    string `json:"header"`
	Editable  bool   `json:"editable"`
	Draggable bool   `json:"draggable"`
	Decorated bool   `json:"decorated"`
	Scope     Scope  `json:"-"`
}

// Fields is the column table, indexed by column.
var Fields = [NumColumns]Field{
	{Column: ColData, Key: "data", Draggable: true, Decorated: true, Scope: ScopeRow},
	{Column: ColName, Key: catalog.FieldTitle, Header: "Name", Editable: true, Decorated: true, Scope: ScopeRow},
	{Column: ColTags, Key: catalog.FieldTags, Header: "Tags", Editable: true, Scope: ScopeCell},
	{Column: ColMediaType, Key: "media_type", Scope: ScopeRow},
	{Column: ColPath, Key: "path", Scope: ScopeRow},
	{Column: ColID, Key: "id", Scope: ScopeRow},
}

// FieldByKey returns the first column showing key.
func FieldByKey(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// ColumnByName resolves a column given by key or header name.
func ColumnByName(name string) (int, error) {
	for _, f := range Fields {
		if name == f.Key || (f.Header != "" && name == f.Header) {
			return f.Column, nil
		}
	}
	return 0, fmt.Errorf("projection: unknown column %q", name)
}

// Value returns the text an asset shows in column col.
func Value(a models.Asset, col int) string {
	switch col {
	case ColData, ColName:
		return a.DisplayTitle()
	case ColTags:
		return a.Tags
	case ColMediaType:
		return string(a.MediaType)
	case ColPath:
		return a.Path
	case ColID:
		return a.ID
	}
	return ""
}
