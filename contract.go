package dispatch

import (
	"reflect"

	"github.com/asynckit/dispatch/future"
)

// Contract is the declared return-type category of the original call. It
// decides which eventual-result shape Dispatch produces and whether a
// failure surfaces through the handle or goes to the ErrorHandler.
type Contract int

const (
	// ContractVoid declares no return value: fire-and-forget submission,
	// failures go to the ErrorHandler.
	ContractVoid Contract = iota

	// ContractFuture declares a single-resolution handle; failures become
	// the handle's failure.
	ContractFuture

	// ContractChainable declares a handle supporting continuations;
	// failures become the handle's failure.
	ContractChainable

	// ContractChannel declares a receive-only channel delivering one
	// future.Outcome; failures arrive on the channel.
	ContractChannel

	// ContractOther is any future-like declared type that matches none of
	// the above. It is submitted fire-and-forget and treated like
	// ContractVoid for error propagation.
	ContractOther
)

func (c Contract) String() string {
	switch c {
	case ContractVoid:
		return "void"
	case ContractFuture:
		return "future"
	case ContractChainable:
		return "chainable"
	case ContractChannel:
		return "channel"
	default:
		return "other"
	}
}

// carriesError reports whether failures surface through the handle rather
// than through the ErrorHandler.
func (c Contract) carriesError() bool {
	switch c {
	case ContractFuture, ContractChainable, ContractChannel:
		return true
	default:
		return false
	}
}

var (
	outcomeType = reflect.TypeOf(future.Outcome{})
	chainerType = reflect.TypeOf((*future.Chainer)(nil)).Elem()
	handleType  = reflect.TypeOf((*future.Handle)(nil)).Elem()
)

// ContractOf classifies a declared return type. The structural tests run
// in priority order because a type can satisfy more than one of them: the
// outcome-channel shape first, then continuation-capable handles, then
// plain handles, with everything else falling through to ContractOther.
// A nil type means the call declares no result.
func ContractOf(t reflect.Type) Contract {
	switch {
	case t == nil:
		return ContractVoid
	case t.Kind() == reflect.Chan && t.ChanDir() != reflect.SendDir && t.Elem() == outcomeType:
		return ContractChannel
	case t.Implements(chainerType):
		return ContractChainable
	case t.Implements(handleType):
		return ContractFuture
	default:
		return ContractOther
	}
}
