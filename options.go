package rendergraph

// GraphOption configures a Graph during creation.
//
// Example:
//
//	// Serial execution (default)
//	g := rendergraph.NewGraph()
//
//	// Run the nodes of each level on four goroutines
//	g := rendergraph.NewGraph(rendergraph.WithWorkers(4), rendergraph.WithLabel("particles"))
type GraphOption func(*graphOptions)

// graphOptions holds optional configuration for Graph creation.
type graphOptions struct {
	workers int
	label   string
}

// defaultOptions returns the default graph options.
func defaultOptions() graphOptions {
	return graphOptions{
		workers: 1, // serial execution on the caller's goroutine
		label:   "rendergraph",
	}
}

// WithWorkers sets how many goroutines execute the nodes of one level.
// Values below 2 keep execution serial. Barriers and clears are always
// recorded by the calling goroutine.
func WithWorkers(n int) GraphOption {
	return func(o *graphOptions) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithLabel names the graph in logs.
func WithLabel(label string) GraphOption {
	return func(o *graphOptions) {
		if label != "" {
			o.label = label
		}
	}
}
