package sse

import (
	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/projection"
	"github.com/starford/mediabin/internal/session"
)

type rowRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

type rowChange struct {
	Row      int    `json:"row"`
	Scope    string `json:"scope"`
	FirstCol int    `json:"first_col"`
	LastCol  int    `json:"last_col"`
}

type importError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type importProgress struct {
	Job string `json:"job"`
	catalog.Progress
}

// Notifier publishes session notifications on a broker.
type Notifier struct {
	b *Broker
}

var _ session.Events = Notifier{}

// NewNotifier wraps b.
func NewNotifier(b *Broker) Notifier { return Notifier{b: b} }

func (n Notifier) RowsReset() {
	n.b.PublishChange(Event{Type: TypeRowsReset, Data: map[string]string{}})
}

func (n Notifier) RowsInserted(first, last int) {
	n.b.PublishChange(Event{Type: TypeRowsInserted, Data: rowRange{First: first, Last: last}})
}

func (n Notifier) RowsRemoved(first, last int) {
	n.b.PublishChange(Event{Type: TypeRowsRemoved, Data: rowRange{First: first, Last: last}})
}

func (n Notifier) RowChanged(row int, scope projection.Scope, firstCol, lastCol int) {
	n.b.PublishChange(Event{Type: TypeRowChanged, Data: rowChange{
		Row: row, Scope: scope.String(), FirstCol: firstCol, LastCol: lastCol,
	}})
}

func (n Notifier) ReportImportError(fileName string, err error) {
	n.b.Publish(Event{Type: TypeImportError, Data: importError{File: fileName, Error: err.Error()}})
}

func (n Notifier) ImportProgress(job string, p catalog.Progress) {
	n.b.Publish(Event{Type: TypeImportProgress, Data: importProgress{Job: job, Progress: p}})
}

func (n Notifier) ImportFinished(job session.JobStatus) {
	n.b.Publish(Event{Type: TypeImportDone, Data: job})
}
