package sheetfeed

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

type cursorState int

const (
	cursorOpen cursorState = iota
	cursorExhausted
	cursorClosed
)

// decodeFunc reads the next entry from the parser and converts it. It returns
// false when the feed has no more entries.
type decodeFunc[T any] func(p *feedParser) (T, bool, error)

// Cursor is a single-pass, forward-only view over one feed response. Entries
// are decoded lazily from the open response body as Next is called.
//
// A Cursor is not safe for concurrent use.
type Cursor[T any] struct {
	exec        *Executor
	parser      *feedParser
	decode      decodeFunc[T]
	etag        string
	notModified bool
	state       cursorState
	logger      *zap.Logger
}

// openCursor issues the request and positions the parser on the first entry.
// A 304 answer to a conditional request yields an empty cursor flagged as not
// modified.
func openCursor[T any](ctx context.Context, exec *Executor, audience Audience, fr feedRequest, decode decodeFunc[T]) (*Cursor[T], error) {
	c := &Cursor[T]{
		exec:   exec,
		decode: decode,
		logger: exec.logger,
	}

	err := exec.Do(ctx, func(ctx context.Context) error {
		res, err := exec.roundTrip(ctx, audience, fr)
		if err != nil {
			return err
		}

		p := newFeedParser(res.Body)
		// the parser cannot produce entries until the feed wrapper is consumed
		if err := p.ParseEnvelope(); err != nil {
			_ = p.Close()
			return err
		}
		c.parser = p
		c.etag = res.Header.Get("ETag")
		return nil
	})
	if err != nil {
		if fr.IfNoneMatch != "" && IsStatus(err, http.StatusNotModified) {
			c.notModified = true
			c.etag = fr.IfNoneMatch
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

// Next returns the next entry, or iterator.Done once the feed is exhausted.
// The cursor closes itself on iterator.Done and on any error; calling Next
// again afterwards returns ErrIllegalState.
func (c *Cursor[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if c.state != cursorOpen {
		return zero, ErrIllegalState
	}
	if c.parser == nil {
		c.finish(cursorExhausted)
		return zero, iterator.Done
	}
	if err := ctx.Err(); err != nil {
		c.finish(cursorClosed)
		return zero, err
	}

	var (
		entry T
		ok    bool
	)
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		entry, ok, err = c.decode(c.parser)
		return err
	})
	if err != nil {
		c.finish(cursorClosed)
		return zero, err
	}
	if !ok {
		c.finish(cursorExhausted)
		return zero, iterator.Done
	}
	return entry, nil
}

// All drains the cursor and returns every remaining entry in feed order.
// It returns ErrIllegalState when the cursor was already drained or closed.
func (c *Cursor[T]) All(ctx context.Context) ([]T, error) {
	if c.state != cursorOpen {
		return nil, ErrIllegalState
	}

	entries := make([]T, 0)
	for {
		entry, err := c.Next(ctx)
		if errors.Is(err, iterator.Done) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// Seq adapts the cursor to a range-over-func sequence. Breaking out of the
// loop closes the cursor.
func (c *Cursor[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			entry, err := c.Next(ctx)
			if errors.Is(err, iterator.Done) {
				return
			}
			if !yield(entry, err) || err != nil {
				c.Close()
				return
			}
		}
	}
}

// Close releases the response body. It is safe to call more than once.
func (c *Cursor[T]) Close() {
	if c.state == cursorOpen {
		c.state = cursorClosed
	}
	c.release()
}

// ETag is the version of the feed this cursor reads, for use as
// RowQuery.IfNoneMatch on a later query.
func (c *Cursor[T]) ETag() string {
	return c.etag
}

// NotModified reports whether the server answered a conditional read with
// "not modified". Such a cursor has no entries.
func (c *Cursor[T]) NotModified() bool {
	return c.notModified
}

// Closed reports whether no further entries can be produced.
func (c *Cursor[T]) Closed() bool {
	return c.state != cursorOpen
}

func (c *Cursor[T]) finish(state cursorState) {
	c.state = state
	c.release()
}

func (c *Cursor[T]) release() {
	if c.parser == nil {
		return
	}
	if err := c.parser.Close(); err != nil {
		c.logger.Debug("ignoring error while closing feed", zap.Error(err))
	}
	c.parser = nil
}
