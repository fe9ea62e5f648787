package graph

import (
	"fmt"
	"strings"
)

// Code classifies every failure the core can produce. A Code is stable across
// releases and is what the library boundary exposes to hosting code.
type Code uint32

const (
	CodeUnknown Code = iota
	// build time
	CodeUnsupportedFeature
	CodeNonConstantControlFlow
	// build or evaluation time
	CodeConstraintViolation
	CodeDivisionByZero
	// evaluation time
	CodeInputOutOfRange
	CodeMissingInput
	CodeUnexpectedInput
	// codec time
	CodeMalformedGraph
	CodeUnsupportedGraphVersion
	CodeFieldMismatch
)

func (c Code) String() string {
	switch c {
	case CodeUnsupportedFeature:
		return "UnsupportedFeature"
	case CodeNonConstantControlFlow:
		return "NonConstantControlFlow"
	case CodeConstraintViolation:
		return "ConstraintViolation"
	case CodeDivisionByZero:
		return "DivisionByZero"
	case CodeInputOutOfRange:
		return "InputOutOfRange"
	case CodeMissingInput:
		return "MissingInput"
	case CodeUnexpectedInput:
		return "UnexpectedInput"
	case CodeMalformedGraph:
		return "MalformedGraph"
	case CodeUnsupportedGraphVersion:
		return "UnsupportedGraphVersion"
	case CodeFieldMismatch:
		return "FieldMismatch"
	}
	return "Unknown"
}

// Error is the one error type of the core. Node, Signal and Pos carry enough
// context to diagnose a failure without re-running; unset fields are omitted
// from the message.
type Error struct {
	Code    Code
	Message string
	// Node is the index of the offending graph node, or -1.
	Node int
	// Signal is the name of the offending input signal, if any.
	Signal string
	// Pos is the source location in the circuit description, if known.
	Pos string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Node >= 0 {
		fmt.Fprintf(&b, " (node %d)", e.Node)
	}
	if e.Signal != "" {
		fmt.Fprintf(&b, " (signal %q)", e.Signal)
	}
	if e.Pos != "" {
		fmt.Fprintf(&b, " at %s", e.Pos)
	}
	return b.String()
}

// Is matches any *Error with the same code, so errors.Is(err, ErrMissingInput)
// works regardless of the attached context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf builds an *Error with a formatted message and no node context.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Node: -1}
}

// NodeErrorf builds an *Error attached to a node index.
func NodeErrorf(code Code, node int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Node: node}
}

// Sentinels for errors.Is matching by code.
var (
	ErrUnsupportedFeature      = &Error{Code: CodeUnsupportedFeature, Node: -1}
	ErrNonConstantControlFlow  = &Error{Code: CodeNonConstantControlFlow, Node: -1}
	ErrConstraintViolation     = &Error{Code: CodeConstraintViolation, Node: -1}
	ErrDivisionByZero          = &Error{Code: CodeDivisionByZero, Node: -1}
	ErrInputOutOfRange         = &Error{Code: CodeInputOutOfRange, Node: -1}
	ErrMissingInput            = &Error{Code: CodeMissingInput, Node: -1}
	ErrUnexpectedInput         = &Error{Code: CodeUnexpectedInput, Node: -1}
	ErrMalformedGraph          = &Error{Code: CodeMalformedGraph, Node: -1}
	ErrUnsupportedGraphVersion = &Error{Code: CodeUnsupportedGraphVersion, Node: -1}
	ErrFieldMismatch           = &Error{Code: CodeFieldMismatch, Node: -1}
)
