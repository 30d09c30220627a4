package farmos

import (
	"context"
	"iter"
)

// PageFetcher fetches the page at cursor. The empty cursor is the first page.
type PageFetcher func(ctx context.Context, cursor string) (*Page, error)

// Iterator walks the records of a paginated request lazily. Only one page
// is held in memory and pages are fetched strictly in order. An Iterator is
// not safe for concurrent use.
type Iterator struct {
	ctx     context.Context //nolint:containedctx // bound to the lifetime of one iteration
	fetch   PageFetcher
	page    *Page
	index   int
	started bool
	err     error
	done    bool
}

// NewIterator creates an iterator over the pages returned by fetch.
func NewIterator(ctx context.Context, fetch PageFetcher) *Iterator {
	return &Iterator{
		ctx:   ctx,
		fetch: fetch,
	}
}

// HasNext reports whether Next will return a record or an error. It may
// fetch the next page.
func (it *Iterator) HasNext() bool {
	if it.err != nil {
		return !it.done
	}

	for {
		if it.page != nil && it.index < len(it.page.Records) {
			return true
		}

		if it.done || (it.started && !it.page.HasNext()) {
			it.done = true

			return false
		}

		cursor := ""
		if it.started {
			cursor = it.page.NextCursor
		}

		page, err := it.fetch(it.ctx, cursor)
		it.started = true

		if err != nil {
			it.err = err

			return true
		}

		it.page = page
		it.index = 0
	}
}

// Next returns the next record. After the last record it returns ErrIteratorDone.
func (it *Iterator) Next() (Record, error) {
	if !it.HasNext() {
		return nil, ErrIteratorDone
	}

	if it.err != nil {
		it.done = true

		return nil, it.err
	}

	record := it.page.Records[it.index]
	it.index++

	return record, nil
}

// Page returns the page currently being walked.
func (it *Iterator) Page() *Page {
	return it.page
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// All collects every remaining record.
func (it *Iterator) All() ([]Record, error) {
	records := make([]Record, 0)

	for it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return records, err
		}

		records = append(records, record)
	}

	return records, nil
}

// ForEach calls fn for every remaining record and stops at the first error.
func (it *Iterator) ForEach(fn func(Record) error) error {
	for it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return err
		}

		err = fn(record)
		if err != nil {
			return err
		}
	}

	return nil
}

// Seq returns the remaining records as a range-over-func sequence. A fetch
// error is yielded once with a nil record and ends the sequence.
func (it *Iterator) Seq() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for it.HasNext() {
			record, err := it.Next()
			if !yield(record, err) || err != nil {
				return
			}
		}
	}
}

// PageResult is one page delivered by StreamPages.
type PageResult struct {
	Page *Page
	Err  error
}

// StreamPages fetches pages in order on a separate goroutine. The channel
// is closed after the last page, after an error, or when ctx is done.
func StreamPages(ctx context.Context, fetch PageFetcher) <-chan PageResult {
	out := make(chan PageResult)

	go func() {
		defer close(out)

		cursor := ""

		for {
			page, err := fetch(ctx, cursor)

			select {
			case out <- PageResult{Page: page, Err: err}:
			case <-ctx.Done():
				return
			}

			if err != nil || !page.HasNext() {
				return
			}

			cursor = page.NextCursor
		}
	}()

	return out
}
