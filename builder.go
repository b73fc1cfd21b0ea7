package rendergraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// builder turns node declarations into depth levels.
//
// Phase A walks backward from the endpoints and records producer ->
// consumer edges; nodes it never reaches are culled. Phase B rejects
// cycles. Phase C groups nodes into levels whose inputs are ready and
// whose renames do not race a sibling.
type builder struct {
	nodes    []*nodeEntry
	ids      *interner
	external map[int]bool

	inputs  [][]int
	outputs [][]int
	renames [][][2]int

	// producers lists every node that outputs a resource. More than one
	// entry is an error, but Phase A still follows all of them so cycles
	// through duplicate producers are reported too.
	producers map[int][]int

	adjacency   [][]int
	visited     []bool
	startPoints []int
	levels      [][]int
}

func newBuilder(nodes []*nodeEntry, externals []ResourceID) *builder {
	b := &builder{
		nodes:     nodes,
		ids:       newInterner(),
		external:  make(map[int]bool, len(externals)),
		inputs:    make([][]int, len(nodes)),
		outputs:   make([][]int, len(nodes)),
		renames:   make([][][2]int, len(nodes)),
		producers: make(map[int][]int),
	}
	for _, id := range externals {
		b.external[b.ids.intern(id)] = true
	}
	for i, n := range nodes {
		for _, a := range n.ctx.inputs {
			b.inputs[i] = append(b.inputs[i], b.ids.intern(a.id))
		}
		for _, a := range n.ctx.outputs {
			id := b.ids.intern(a.id)
			b.outputs[i] = append(b.outputs[i], id)
			b.producers[id] = append(b.producers[id], i)
		}
		for _, r := range n.ctx.renames {
			b.renames[i] = append(b.renames[i], [2]int{b.ids.intern(r.From), b.ids.intern(r.To)})
		}
	}
	return b
}

func (b *builder) name(node int) string { return b.nodes[node].name }

// build runs all three phases.
func (b *builder) build() error {
	if err := b.buildAdjacency(); err != nil {
		return err
	}
	if err := b.leveling(); err != nil {
		return err
	}
	return nil
}

// buildAdjacency is Phase A plus the checks that need the full edge set:
// duplicate producers, cycles and the existence of a start point.
func (b *builder) buildAdjacency() error {
	var endpoints []int
	for i, n := range b.nodes {
		if n.endpoint {
			endpoints = append(endpoints, i)
		}
	}
	if len(endpoints) == 0 {
		return ErrNoEndpoint
	}

	b.adjacency = make([][]int, len(b.nodes))
	b.visited = make([]bool, len(b.nodes))
	edges := make(map[[2]int]bool)

	queue := slices.Clone(endpoints)
	for _, e := range endpoints {
		b.visited[e] = true
	}

	var unknown []error
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		start := true
		for _, in := range b.inputs[cur] {
			producers := b.producers[in]
			if len(producers) == 0 {
				if !b.external[in] {
					unknown = append(unknown, fmt.Errorf("%w: node %q reads %q",
						ErrUnknownResource, b.name(cur), b.ids.name(in)))
				}
				continue
			}
			start = false
			for _, p := range producers {
				if e := [2]int{p, cur}; !edges[e] {
					edges[e] = true
					b.adjacency[p] = append(b.adjacency[p], cur)
				}
				if !b.visited[p] {
					b.visited[p] = true
					queue = append(queue, p)
				}
			}
		}
		if start {
			b.startPoints = append(b.startPoints, cur)
		}
	}
	slices.Sort(b.startPoints)
	for _, adj := range b.adjacency {
		slices.Sort(adj)
	}

	errs := []error{b.detectCycles(), b.duplicateOutputs()}
	errs = append(errs, unknown...)
	if len(b.startPoints) == 0 {
		errs = append(errs, ErrNoStartPoint)
	}
	errs = append(errs, b.renameTargets())
	return errors.Join(errs...)
}

// duplicateOutputs reports resources with more than one producer, culled
// producers included.
func (b *builder) duplicateOutputs() error {
	var errs []error
	for id := range b.ids.len() {
		producers := b.producers[id]
		if len(producers) < 2 {
			continue
		}
		names := make([]string, len(producers))
		for i, p := range producers {
			names[i] = b.name(p)
		}
		errs = append(errs, fmt.Errorf("%w: %q by %s",
			ErrDuplicateOutput, b.ids.name(id), strings.Join(names, ", ")))
	}
	return errors.Join(errs...)
}

// renameTargets rejects renames onto external resources; the target
// would name two different allocations.
func (b *builder) renameTargets() error {
	var errs []error
	for i, renames := range b.renames {
		if !b.visited[i] {
			continue
		}
		for _, r := range renames {
			if b.external[r[1]] {
				errs = append(errs, fmt.Errorf("%w: node %q renames %q onto external %q",
					ErrDoubleAlias, b.name(i), b.ids.name(r[0]), b.ids.name(r[1])))
			}
		}
	}
	return errors.Join(errs...)
}

// detectCycles is Phase B: a depth-first walk from every start point, and
// then from any reachable node not yet walked so that cycles without a
// start point are found as well.
func (b *builder) detectCycles() error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]uint8, len(b.nodes))
	var stack []int

	var visit func(u int) error
	visit = func(u int) error {
		state[u] = onStack
		stack = append(stack, u)
		for _, v := range b.adjacency[u] {
			switch state[v] {
			case onStack:
				return fmt.Errorf("%w: %s", ErrCycle, b.cyclePath(stack, v))
			case unvisited:
				if err := visit(v); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[u] = done
		return nil
	}

	roots := slices.Clone(b.startPoints)
	for i := range b.nodes {
		roots = append(roots, i)
	}
	for _, r := range roots {
		if b.visited[r] && state[r] == unvisited {
			if err := visit(r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) cyclePath(stack []int, back int) string {
	i := slices.Index(stack, back)
	names := make([]string, 0, len(stack)-i+1)
	for _, n := range stack[i:] {
		names = append(names, b.name(n))
	}
	names = append(names, b.name(back))
	return strings.Join(names, " -> ")
}

// leveling is Phase C.
func (b *builder) leveling() error {
	// ready holds available resources; true marks a resource renamed away.
	ready := make(map[int]bool)
	for id := range b.external {
		if len(b.producers[id]) == 0 {
			ready[id] = false
		}
	}

	remaining := 0
	for _, v := range b.visited {
		if v {
			remaining++
		}
	}
	processed := make([]bool, len(b.nodes))
	candidates := slices.Clone(b.startPoints)

	for remaining > 0 {
		level, next, err := b.buildLevel(candidates, ready, processed)
		if err != nil {
			return err
		}
		// Unreachable after a clean Phase A and B.
		if len(level) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyLevel, b.pending(processed))
		}
		if err := b.updateReady(level, ready); err != nil {
			return err
		}
		slices.Sort(level)
		b.levels = append(b.levels, level)
		remaining -= len(level)
		candidates = next
	}
	return nil
}

// buildLevel picks the nodes of one level from candidates. It returns the
// level and the candidates for the next one.
func (b *builder) buildLevel(candidates []int, ready map[int]bool, processed []bool) (level, next []int, err error) {
	var plain, renaming []int
	seen := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		if processed[c] || seen[c] {
			continue
		}
		seen[c] = true

		ok := true
		for _, in := range b.inputs[c] {
			aliased, present := ready[in]
			if aliased {
				return nil, nil, fmt.Errorf("%w: node %q reads %q",
					ErrAliasedResource, b.name(c), b.ids.name(in))
			}
			if !present {
				ok = false
			}
		}
		switch {
		case !ok:
			next = append(next, c)
		case len(b.renames[c]) == 0:
			plain = append(plain, c)
		default:
			renaming = append(renaming, c)
		}
	}

	used := make(map[int]bool)
	renamed := make(map[int]bool)
	place := func(c int) {
		processed[c] = true
		level = append(level, c)
		for _, id := range b.inputs[c] {
			used[id] = true
		}
		for _, id := range b.outputs[c] {
			used[id] = true
		}
		for _, consumer := range b.adjacency[c] {
			if !processed[consumer] {
				next = append(next, consumer)
			}
		}
	}

	for _, c := range plain {
		place(c)
	}
	for _, c := range renaming {
		conflict := false
		for _, r := range b.renames[c] {
			if used[r[0]] {
				conflict = true
			}
		}
		for _, in := range b.inputs[c] {
			if renamed[in] {
				conflict = true
			}
		}
		if conflict {
			slogger().Debug("rendergraph: rename deferred",
				"node", b.name(c), "level", len(b.levels))
			next = append(next, c)
			continue
		}
		place(c)
		for _, r := range b.renames[c] {
			renamed[r[0]] = true
		}
	}
	return level, next, nil
}

// updateReady marks the outputs of a finished level ready and the sources
// of its renames aliased.
func (b *builder) updateReady(level []int, ready map[int]bool) error {
	for _, c := range level {
		for _, r := range b.renames[c] {
			if _, present := ready[r[1]]; present {
				return fmt.Errorf("%w: node %q renames %q onto %q",
					ErrDoubleAlias, b.name(c), b.ids.name(r[0]), b.ids.name(r[1]))
			}
		}
	}
	for _, c := range level {
		for _, id := range b.outputs[c] {
			ready[id] = false
		}
	}
	for _, c := range level {
		for _, r := range b.renames[c] {
			ready[r[0]] = true
		}
	}
	return nil
}

// pending names the reachable nodes that were never scheduled.
func (b *builder) pending(processed []bool) string {
	var names []string
	for i, v := range b.visited {
		if v && !processed[i] {
			names = append(names, b.name(i))
		}
	}
	return strings.Join(names, ", ")
}

// culled returns the nodes Phase A never reached.
func (b *builder) culled() []int {
	var out []int
	for i, v := range b.visited {
		if !v {
			out = append(out, i)
		}
	}
	return out
}
