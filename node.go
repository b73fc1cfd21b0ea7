package rendergraph

// Node is a unit of GPU work with a declared resource contract.
//
// Setup is called once by Graph.Setup and must only declare resources.
// Execute is called every frame with the resources Setup declared. Nodes
// in the same depth level may run concurrently when the graph has
// workers; they must record GPU commands through ExecuteContext.Encode.
type Node interface {
	Setup(ctx *SetupContext)
	Execute(ctx *ExecuteContext) error
}

// FuncNode adapts a pair of functions to Node. A nil ExecuteFunc does
// nothing.
type FuncNode struct {
	SetupFunc   func(ctx *SetupContext)
	ExecuteFunc func(ctx *ExecuteContext) error
}

// Setup implements Node.
func (n FuncNode) Setup(ctx *SetupContext) {
	if n.SetupFunc != nil {
		n.SetupFunc(ctx)
	}
}

// Execute implements Node.
func (n FuncNode) Execute(ctx *ExecuteContext) error {
	if n.ExecuteFunc == nil {
		return nil
	}
	return n.ExecuteFunc(ctx)
}
