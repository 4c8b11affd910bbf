package graph

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrNodeNotFound is returned when a connection names an unknown node.
	ErrNodeNotFound = eris.New("graph: node not found")
	// ErrInvalidProcess is returned by NewProcess for malformed definitions.
	ErrInvalidProcess = eris.New("graph: invalid process")
)

// VerificationError reports a failed precondition check. The phase's
// Execute was not called.
type VerificationError struct {
	Node     string
	Messages []string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("graph: verification failed at %s: %s", e.Node, strings.Join(e.Messages, "; "))
}
