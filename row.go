package sheetfeed

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// CommitOutcome is the result of a conditional row write
type CommitOutcome int

const (
	// Committed means the server accepted the write (or nothing was dirty).
	Committed CommitOutcome = iota + 1
	// Conflict means the row changed on the server since it was read; local
	// state is untouched.
	Conflict
)

func (o CommitOutcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Row is the in-memory projection of one list-feed entry
type Row struct {
	exec    *Executor
	id      string
	editURL string
	etag    string
	values  map[string]string
	dirty   bool
}

func newRow(exec *Executor, entry *listEntry) (*Row, error) {
	editURL, err := entry.Links.href(relEdit, "list")
	if err != nil {
		return nil, err
	}
	return &Row{
		exec:    exec,
		id:      entry.ID,
		editURL: editURL,
		etag:    entry.ETag,
		values:  entry.values(),
	}, nil
}

// ID returns the server identifier of the row
func (r *Row) ID() string { return r.id }

// EditURL returns the location updates are sent to
func (r *Row) EditURL() string { return r.editURL }

// ETag returns the version the local state was read at. Empty means unknown.
func (r *Row) ETag() string { return r.etag }

// Dirty reports whether the row has uncommitted changes
func (r *Row) Dirty() bool { return r.dirty }

// Get returns the value of a column, or "" if the row has no such column
func (r *Row) Get(column string) string {
	return r.values[column]
}

// Lookup returns the value of a column and whether it exists
func (r *Row) Lookup(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Set changes a column locally and marks the row dirty.
func (r *Row) Set(column, value string) {
	r.values[column] = value
	r.dirty = true
}

// Columns returns the row's column names in sorted order
func (r *Row) Columns() []string {
	return sortedKeys(r.values)
}

// Values returns a copy of the row's cells
func (r *Row) Values() map[string]string {
	values := make(map[string]string, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	return values
}

// Commit writes local changes only if the row is unchanged on the server.
// On Conflict the caller either reloads and reapplies, or calls Apply.
func (r *Row) Commit(ctx context.Context) (CommitOutcome, error) {
	return r.commit(ctx, true)
}

// Apply writes local changes regardless of concurrent edits.
func (r *Row) Apply(ctx context.Context) error {
	_, err := r.commit(ctx, false)
	return err
}

func (r *Row) commit(ctx context.Context, useVersionCheck bool) (CommitOutcome, error) {
	if !r.dirty {
		return Committed, nil
	}
	if len(r.values) == 0 {
		return 0, ErrNoColumns
	}

	ifMatch := r.ifMatch(useVersionCheck)
	payload := rowPayload(r.values)

	var updated *Row
	err := r.exec.Do(ctx, func(ctx context.Context) error {
		res, err := r.exec.roundTrip(ctx, AudienceSpreadsheets, feedRequest{
			Method:  http.MethodPut,
			URL:     r.editURL,
			Body:    payload,
			IfMatch: ifMatch,
		})
		if err != nil {
			return err
		}
		defer drain(res)

		var entry listEntry
		if err := decodeEntry(res.Body, &entry); err != nil {
			return err
		}
		updated, err = newRow(r.exec, &entry)
		return err
	})
	if err != nil {
		if useVersionCheck && IsStatus(err, http.StatusPreconditionFailed) {
			r.exec.logger.Info("row changed on server, not committed",
				zap.String("row", r.id),
				zap.String("etag", r.etag))
			return Conflict, nil
		}
		return 0, err
	}

	r.id = updated.id
	r.editURL = updated.editURL
	r.etag = updated.etag
	r.values = updated.values
	r.dirty = false
	return Committed, nil
}

// ifMatch is the version precondition for a write. An unknown version
// cannot be checked, so it degrades to an unconditional write.
func (r *Row) ifMatch(useVersionCheck bool) string {
	if useVersionCheck && r.etag != "" {
		return r.etag
	}
	return "*"
}
