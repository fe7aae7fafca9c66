package catalog

import "github.com/starford/mediabin/internal/apperr"

// EventType identifies a catalog mutation.
type EventType int

// Mutation kinds carried on the change feed.
const (
	EventInsert EventType = iota + 1
	EventDelete
	EventUpdate
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "insert"
	case EventDelete:
		return "delete"
	case EventUpdate:
		return "update"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event is one entry of the change feed. Index is the asset's position after
// an insert or update and its former position after a delete. Key is set for
// updates only.
type Event struct {
	Type  EventType
	ID    string
	Key   string
	Index int
}

// Subscriber receives change feed events synchronously, in mutation order.
// It must not mutate the catalog while handling an event.
type Subscriber interface {
	CatalogChanged(Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event)

// CatalogChanged implements Subscriber.
func (f SubscriberFunc) CatalogChanged(ev Event) { f(ev) }

// Subscribe attaches the single feed consumer. The returned function detaches
// it; calling it after another subscriber took over is a no-op.
func (c *Catalog) Subscribe(sub Subscriber) (unsubscribe func(), err error) {
	if c.sub != nil {
		return nil, apperr.ErrFeedBusy
	}
	c.subSeq++
	token := c.subSeq
	c.sub = sub
	return func() {
		if c.subSeq == token {
			c.sub = nil
		}
	}, nil
}

func (c *Catalog) emit(ev Event) {
	c.version++
	if c.sub == nil {
		return
	}
	c.dispatching = true
	defer func() { c.dispatching = false }()
	c.sub.CatalogChanged(ev)
}

func (c *Catalog) checkMutable() error {
	if c.dispatching {
		return apperr.ErrReentrantMutation
	}
	return nil
}
