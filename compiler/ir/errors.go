package ir

import "fmt"

type (
	// TypeConsistencyError is raised when an operator meets operand types
	// it can't reconcile. It aborts compilation of the method.
	TypeConsistencyError struct {
		Method string
		Op     string
		Msg    string
	}
)

func NewTypeConsistencyError(op Operator, msg string) *TypeConsistencyError {
	e := &TypeConsistencyError{
		Op:  fmt.Sprintf("%T", op),
		Msg: msg,
	}

	if b := op.Base().Block(); b != nil && b.Graph() != nil {
		e.Method = b.Graph().Method
	}

	return e
}

func (e *TypeConsistencyError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("type consistency: %v: %v", e.Op, e.Msg)
	}

	return fmt.Sprintf("type consistency: %v: %v: %v", e.Method, e.Op, e.Msg)
}
