package farmos

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/farmos/internal/constants"
)

// BlueprintBuilder builds a Blueprint with a fluent API.
type BlueprintBuilder struct {
	subrequests []Subrequest
}

// NewBlueprintBuilder creates a new blueprint builder.
func NewBlueprintBuilder() *BlueprintBuilder {
	return &BlueprintBuilder{
		subrequests: make([]Subrequest, 0),
	}
}

// ResourceEndpoint returns the JSONAPI endpoint of a bundle, or of one
// record when id is not empty.
func ResourceEndpoint(entityType, bundle, id string) string {
	parts := []string{constants.APIPathRoot, entityType, bundle}
	if id != "" {
		parts = append(parts, id)
	}

	return strings.Join(parts, "/")
}

// ResourceType returns the JSONAPI type name of a bundle, e.g. "log--activity".
func ResourceType(entityType, bundle string) string {
	return entityType + constants.ResourceTypeSep + bundle
}

// AddCreate adds a create subrequest for a bundle. The record type is set
// from entityType and bundle unless the record already carries one.
func (b *BlueprintBuilder) AddCreate(id, entityType, bundle string, record Record, waitFor ...string) *BlueprintBuilder {
	return b.AddSubrequest(Subrequest{
		RequestID: id,
		Action:    ActionCreate,
		Endpoint:  ResourceEndpoint(entityType, bundle, ""),
		Body:      dataDocument(entityType, bundle, record),
		WaitFor:   waitFor,
	})
}

// AddUpdate adds an update subrequest for an existing record.
func (b *BlueprintBuilder) AddUpdate(id, entityType, bundle string, record Record, waitFor ...string) *BlueprintBuilder {
	return b.AddSubrequest(Subrequest{
		RequestID: id,
		Action:    ActionUpdate,
		Endpoint:  ResourceEndpoint(entityType, bundle, record.IDField()),
		Body:      dataDocument(entityType, bundle, record),
		WaitFor:   waitFor,
	})
}

// AddDelete adds a delete subrequest.
func (b *BlueprintBuilder) AddDelete(id, entityType, bundle, recordID string, waitFor ...string) *BlueprintBuilder {
	return b.AddSubrequest(Subrequest{
		RequestID: id,
		Action:    ActionDelete,
		Endpoint:  ResourceEndpoint(entityType, bundle, recordID),
		WaitFor:   waitFor,
	})
}

// AddView adds a view subrequest for a record, or for the bundle when recordID is empty.
func (b *BlueprintBuilder) AddView(id, entityType, bundle, recordID string, waitFor ...string) *BlueprintBuilder {
	return b.AddSubrequest(Subrequest{
		RequestID: id,
		Action:    ActionView,
		Endpoint:  ResourceEndpoint(entityType, bundle, recordID),
		WaitFor:   waitFor,
	})
}

// AddSubrequest adds a custom subrequest.
func (b *BlueprintBuilder) AddSubrequest(subrequest Subrequest) *BlueprintBuilder {
	b.subrequests = append(b.subrequests, subrequest)

	return b
}

// Build returns the blueprint.
func (b *BlueprintBuilder) Build() Blueprint {
	return append(Blueprint(nil), b.subrequests...)
}

func dataDocument(entityType, bundle string, record Record) map[string]any {
	data := record.Clone()
	if data == nil {
		data = Record{}
	}

	if data.Type() == "" {
		data["type"] = ResourceType(entityType, bundle)
	}

	return map[string]any{"data": data}
}

// BatchOperation is one client side operation run by a BatchExecutor.
type BatchOperation struct {
	ID       string
	Run      func(ctx context.Context) (any, error)
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Data     any
	Error    error
	Duration time.Duration
}

// BatchExecutor runs independent operations concurrently with a bound on
// in-flight requests. Unlike a subrequests blueprint it makes one HTTP
// call per operation and works against both API styles.
type BatchExecutor struct {
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultBatchConcurrency
	}

	return &BatchExecutor{
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per operation timeout. Zero disables it.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs the operations and returns results in input order.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) []BatchResult {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			result := b.run(ctx, operation)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}
		}()
	}

	waitGroup.Wait()

	return results
}

func (b *BatchExecutor) run(ctx context.Context, operation BatchOperation) *BatchResult {
	opCtx := ctx

	if b.timeout > 0 {
		var cancel context.CancelFunc

		opCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	result := &BatchResult{ID: operation.ID}

	if operation.Run == nil {
		result.Error = fmt.Errorf("%w: operation %q has no function", ErrUnsupportedOperation, operation.ID)
	} else {
		result.Data, result.Error = operation.Run(opCtx)
		result.Success = result.Error == nil
	}

	result.Duration = time.Since(start)

	return result
}
