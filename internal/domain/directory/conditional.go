package directory

import "context"

// Outcome is the result tag of a conditional write.
type Outcome int

const (
	// Committed means the mutation's value was durably stored.
	Committed Outcome = iota + 1
	// Conflict means the mutation aborted against the value it observed.
	Conflict
	// Failed means the store reported an error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what ConditionalWrite returns. Value holds the committed value on
// Committed and the observed value on Conflict. Err is set only on Failed.
type Result struct {
	Outcome Outcome
	Value   []byte
	Err     error
}

// ConditionalWrite runs a store transaction and blocks until it completes or
// ctx is done. When ctx ends first the result is Failed even though the store
// may still commit the write afterwards.
func ConditionalWrite(ctx context.Context, s Store, path string, m Mutation) Result {
	ch := make(chan Result, 1)
	s.Transaction(ctx, path, m, func(committed bool, snapshot []byte, err error) {
		switch {
		case err != nil:
			ch <- Result{Outcome: Failed, Err: err}
		case committed:
			ch <- Result{Outcome: Committed, Value: snapshot}
		default:
			ch <- Result{Outcome: Conflict, Value: snapshot}
		}
	})

	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return Result{Outcome: Failed, Err: ctx.Err()}
	}
}
