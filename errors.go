package rendergraph

import "errors"

// Graph construction errors.
var (
	// ErrNoEndpoint is returned by Setup when no node is marked as an
	// endpoint.
	ErrNoEndpoint = errors.New("rendergraph: graph has no endpoint")

	// ErrNoStartPoint is returned when no reachable node has all of its
	// inputs supplied externally.
	ErrNoStartPoint = errors.New("rendergraph: graph has no start point")

	// ErrCycle is returned when the producer/consumer edges form a cycle.
	ErrCycle = errors.New("rendergraph: dependency cycle")

	// ErrEmptyLevel is returned when leveling stalls with nodes left over.
	ErrEmptyLevel = errors.New("rendergraph: unsatisfiable nodes remain")

	// ErrDuplicateOutput is returned when two nodes produce the same
	// resource.
	ErrDuplicateOutput = errors.New("rendergraph: resource produced by more than one node")

	// ErrSelfCycle is returned when a node reads a resource it also writes.
	ErrSelfCycle = errors.New("rendergraph: node reads its own output")

	// ErrDuplicateDeclaration is returned when a node declares the same
	// resource twice, a node name is reused, or an external is bound twice.
	ErrDuplicateDeclaration = errors.New("rendergraph: duplicate declaration")

	// ErrInvalidUsage is returned for usages that are not a single flag,
	// outputs with a read-only usage, conflicting usages within one level,
	// mismatched resource kinds, and externals lacking a declared usage.
	ErrInvalidUsage = errors.New("rendergraph: invalid resource usage")

	// ErrInvalidSpec is returned when a resource that must be allocated
	// has an empty or unplaceable spec.
	ErrInvalidSpec = errors.New("rendergraph: invalid resource spec")

	// ErrInvalidNode is returned by AddNode for a nil node or empty name.
	ErrInvalidNode = errors.New("rendergraph: invalid node")
)

// Aliasing errors.
var (
	// ErrAliasedResource is returned when a node reads a resource that was
	// already renamed away.
	ErrAliasedResource = errors.New("rendergraph: resource used after rename")

	// ErrDoubleAlias is returned when a rename targets a resource that
	// already exists.
	ErrDoubleAlias = errors.New("rendergraph: rename target already exists")

	// ErrAliasCycle is returned when renames form a loop.
	ErrAliasCycle = errors.New("rendergraph: rename cycle")

	// ErrUnknownResource is returned when a node reads a resource that is
	// neither produced by a node nor supplied externally.
	ErrUnknownResource = errors.New("rendergraph: unknown resource")
)

// Execution errors.
var (
	// ErrNotSetUp is returned by Execute before a successful Setup.
	ErrNotSetUp = errors.New("rendergraph: graph not set up")

	// ErrResourceNotDeclared is returned when a node looks up a resource it
	// did not declare.
	ErrResourceNotDeclared = errors.New("rendergraph: resource not declared by node")

	// ErrLifetimeMismatch is returned when a frame ends with reference
	// counts that did not reach zero.
	ErrLifetimeMismatch = errors.New("rendergraph: resource lifetime mismatch")

	// ErrNoRecorder is returned by Execute when the frame has no recorder.
	ErrNoRecorder = errors.New("rendergraph: frame has no recorder")

	// ErrNoAllocator is returned by Execute when the graph needs transient
	// resources and no allocator was given.
	ErrNoAllocator = errors.New("rendergraph: no transient allocator")
)
