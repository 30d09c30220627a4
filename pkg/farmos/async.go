package farmos

import (
	"context"
)

// Future is the pending result of an operation started with Async.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async runs fn on a new goroutine.
func Async[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	future := &Future[T]{done: make(chan struct{})}

	go func() {
		defer close(future.done)

		future.value, future.err = fn(ctx)
	}()

	return future
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result or for ctx to be done. Giving up on ctx does
// not stop the operation; cancel the context passed to Async for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// RecordResult is one record delivered by AsyncResources.Iterate.
type RecordResult struct {
	Record Record
	Err    error
}

// AsyncResources runs the operations of a ResourceClient without blocking
// the caller. Results and errors are those of the wrapped client.
type AsyncResources struct {
	client ResourceClient
}

// NewAsyncResources wraps client.
func NewAsyncResources(client ResourceClient) *AsyncResources {
	return &AsyncResources{client: client}
}

// Get starts ResourceClient.Get.
func (a *AsyncResources) Get(ctx context.Context, bundle string, filters Filters) *Future[*Page] {
	return Async(ctx, func(ctx context.Context) (*Page, error) {
		return a.client.Get(ctx, bundle, filters)
	})
}

// GetID starts ResourceClient.GetID.
func (a *AsyncResources) GetID(ctx context.Context, bundle, id string, filters Filters) *Future[Record] {
	return Async(ctx, func(ctx context.Context) (Record, error) {
		return a.client.GetID(ctx, bundle, id, filters)
	})
}

// Send starts ResourceClient.Send.
func (a *AsyncResources) Send(ctx context.Context, bundle string, payload Record) *Future[Record] {
	return Async(ctx, func(ctx context.Context) (Record, error) {
		return a.client.Send(ctx, bundle, payload)
	})
}

// Delete starts ResourceClient.Delete.
func (a *AsyncResources) Delete(ctx context.Context, bundle, id string) *Future[*Response] {
	return Async(ctx, func(ctx context.Context) (*Response, error) {
		return a.client.Delete(ctx, bundle, id)
	})
}

// Iterate streams records in server order. Pages are still fetched one at
// a time. The channel is closed after the last record, after an error, or
// when ctx is done.
func (a *AsyncResources) Iterate(ctx context.Context, bundle string, filters Filters) <-chan RecordResult {
	out := make(chan RecordResult)

	go func() {
		defer close(out)

		for record, err := range a.client.Iterate(ctx, bundle, filters).Seq() {
			select {
			case out <- RecordResult{Record: record, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
