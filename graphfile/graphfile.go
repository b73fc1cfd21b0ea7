package graphfile

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Node kinds.
const (
	KindPass        = "pass"
	KindClearBuffer = "clearBuffer"
	KindCopyBuffer  = "copyBuffer"
	KindCompute     = "compute"
)

// ErrInvalidFile is returned for graph files that parse but do not
// describe a valid graph.
var ErrInvalidFile = errors.New("graphfile: invalid graph file")

// File is a parsed graph file.
type File struct {
	Label     string       `json:"label,omitempty"`
	Workers   int          `json:"workers,omitempty"`
	Externals Declarations `json:"externals,omitempty"`
	Nodes     []Node       `json:"nodes"`
}

// Declarations lists buffers and textures.
type Declarations struct {
	Buffers  []Resource `json:"buffers,omitempty"`
	Textures []Resource `json:"textures,omitempty"`
}

// Resource declares one buffer or texture. Shape fields are only needed
// for outputs the graph allocates and for externals.
type Resource struct {
	ID    string `json:"id"`
	Usage string `json:"usage"`

	ElementSize uint32 `json:"elementSize,omitempty"`
	Count       uint32 `json:"count,omitempty"`

	Width      uint32    `json:"width,omitempty"`
	Height     uint32    `json:"height,omitempty"`
	Format     string    `json:"format,omitempty"`
	ClearColor []float64 `json:"clearColor,omitempty"`
	ClearDepth *float32  `json:"clearDepth,omitempty"`
}

// Rename declares an in-place write from one ID to another.
type Rename struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Usage   string `json:"usage"`
	Texture bool   `json:"texture,omitempty"`
}

// Node declares one node.
type Node struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind,omitempty"`
	Endpoint bool         `json:"endpoint,omitempty"`
	Inputs   Declarations `json:"inputs,omitempty"`
	Outputs  Declarations `json:"outputs,omitempty"`
	Renames  []Rename     `json:"renames,omitempty"`

	// Compute nodes only.
	Shader     string   `json:"shader,omitempty"`
	EntryPoint string   `json:"entryPoint,omitempty"`
	Workgroups []uint32 `json:"workgroups,omitempty"`
}

// Parse decodes a graph file. Unknown fields are errors.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the graph file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Validate checks the structure of the file: node names, kinds and the
// declarations each kind needs. Usage names and formats are checked when
// the graph is built.
func (f *File) Validate() error {
	if len(f.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidFile)
	}
	if f.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidFile, f.Workers)
	}
	for _, r := range append(append([]Resource(nil), f.Externals.Buffers...), f.Externals.Textures...) {
		if r.ID == "" {
			return fmt.Errorf("%w: external without id", ErrInvalidFile)
		}
	}
	for i, n := range f.Nodes {
		if n.Name == "" {
			return fmt.Errorf("%w: node %d has no name", ErrInvalidFile, i)
		}
		if err := n.validate(); err != nil {
			return fmt.Errorf("%w: node %q: %w", ErrInvalidFile, n.Name, err)
		}
	}
	return nil
}

func (n *Node) validate() error {
	switch n.Kind {
	case "", KindPass:
		return nil
	case KindClearBuffer:
		if len(n.Outputs.Buffers)+len(n.Renames) != 1 || len(n.Inputs.Buffers)+len(n.Inputs.Textures)+len(n.Outputs.Textures) != 0 {
			return errors.New("clearBuffer needs exactly one output buffer or one rename")
		}
		if len(n.Renames) == 1 && n.Renames[0].Texture {
			return errors.New("clearBuffer cannot clear a texture")
		}
	case KindCopyBuffer:
		if len(n.Inputs.Buffers) != 1 || len(n.Outputs.Buffers) != 1 || len(n.Renames) != 0 {
			return errors.New("copyBuffer needs one input and one output buffer")
		}
	case KindCompute:
		if n.Shader == "" {
			return errors.New("compute needs a shader")
		}
		if len(n.Inputs.Textures)+len(n.Outputs.Textures)+len(n.Renames) != 0 {
			return errors.New("compute binds storage buffers only")
		}
		if len(n.Workgroups) > 3 {
			return fmt.Errorf("compute has %d workgroup dimensions", len(n.Workgroups))
		}
	default:
		return fmt.Errorf("unknown kind %q", n.Kind)
	}
	return nil
}
