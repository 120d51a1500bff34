// Package section models the paper's section graph and per-document
// section state: a static DAG of sections, a mutable content/status store,
// and the pure lock evaluator that derives status from dependencies.
package section

// Spec declares one section of the paper structure.
type Spec struct {
	// Key is the stable identifier (e.g. "abstract").
	Key string `json:"key"`

	// Name is the display name shown in the editor.
	Name string `json:"name"`

	// Dependencies lists the keys that must be completed before this
	// section unlocks. Every key must be declared elsewhere in the graph.
	Dependencies []string `json:"dependencies"`

	// Numbered marks sections that receive a running chapter number.
	Numbered bool `json:"numbered"`
}

// Graph is a validated, immutable section structure. Declaration order is
// presentation order.
type Graph struct {
	order []string
	specs map[string]Spec
}

// NewGraph validates the declared structure and builds a Graph.
// It fails with a *ConfigError when a dependency references an undefined
// key, a key is declared twice, or the dependency relation has a cycle.
func NewGraph(specs []Spec) (*Graph, error) {
	g := &Graph{
		order: make([]string, 0, len(specs)),
		specs: make(map[string]Spec, len(specs)),
	}

	for _, spec := range specs {
		if spec.Key == "" {
			return nil, &ConfigError{Message: "section key must not be empty"}
		}
		if _, dup := g.specs[spec.Key]; dup {
			return nil, &ConfigError{Key: spec.Key, Message: "section declared twice"}
		}
		g.specs[spec.Key] = spec
		g.order = append(g.order, spec.Key)
	}

	for _, spec := range g.specs {
		for _, dep := range spec.Dependencies {
			if _, ok := g.specs[dep]; !ok {
				return nil, &ConfigError{Key: spec.Key, Message: "undefined dependency " + dep}
			}
		}
	}

	if key, ok := g.findCycle(); ok {
		return nil, &ConfigError{Key: key, Message: "dependency cycle detected"}
	}

	return g, nil
}

// MustGraph is like NewGraph but panics on validation failure.
// Intended for static structures known to be valid.
func MustGraph(specs []Spec) *Graph {
	g, err := NewGraph(specs)
	if err != nil {
		panic(err)
	}
	return g
}

// findCycle runs a DFS with a recursion stack over the dependency relation.
// Returns a key on the first cycle found.
func (g *Graph) findCycle() (string, bool) {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.specs))

	var visit func(key string) (string, bool)
	visit = func(key string) (string, bool) {
		state[key] = inStack
		for _, dep := range g.specs[key].Dependencies {
			switch state[dep] {
			case inStack:
				return dep, true
			case unvisited:
				if k, found := visit(dep); found {
					return k, true
				}
			}
		}
		state[key] = done
		return "", false
	}

	for _, key := range g.order {
		if state[key] == unvisited {
			if k, found := visit(key); found {
				return k, true
			}
		}
	}
	return "", false
}

// AllKeys returns the section keys in declaration order.
func (g *Graph) AllKeys() []string {
	keys := make([]string, len(g.order))
	copy(keys, g.order)
	return keys
}

// Dependencies returns the direct dependency keys of a section.
// Unknown keys yield nil.
func (g *Graph) Dependencies(key string) []string {
	spec, ok := g.specs[key]
	if !ok {
		return nil
	}
	deps := make([]string, len(spec.Dependencies))
	copy(deps, spec.Dependencies)
	return deps
}

// Name returns the display name of a section, or the key itself when the
// key is unknown.
func (g *Graph) Name(key string) string {
	if spec, ok := g.specs[key]; ok {
		return spec.Name
	}
	return key
}

// Spec returns the declaration of a section.
func (g *Graph) Spec(key string) (Spec, bool) {
	spec, ok := g.specs[key]
	return spec, ok
}

// Contains reports whether key is declared in the graph.
func (g *Graph) Contains(key string) bool {
	_, ok := g.specs[key]
	return ok
}

// Specs returns all section declarations in declaration order.
func (g *Graph) Specs() []Spec {
	specs := make([]Spec, 0, len(g.order))
	for _, key := range g.order {
		specs = append(specs, g.specs[key])
	}
	return specs
}

// Well-known section keys with special export formatting.
const (
	KeyIdea     = "idea"
	KeyTitle    = "title"
	KeyAbstract = "abstract"
	KeyKeywords = "keywords"
)

// DefaultStructure returns the standard ten-section paper layout.
func DefaultStructure() *Graph {
	return MustGraph([]Spec{
		{Key: KeyIdea, Name: "核心想法", Dependencies: nil},
		{Key: KeyTitle, Name: "标题", Dependencies: []string{"idea"}},
		{Key: KeyAbstract, Name: "摘要", Dependencies: []string{"idea", "title"}},
		{Key: KeyKeywords, Name: "关键词", Dependencies: []string{"title", "abstract"}},
		{Key: "introduction", Name: "引言", Dependencies: []string{"title", "abstract"}, Numbered: true},
		{Key: "background", Name: "理论背景与假设建立", Dependencies: []string{"title", "abstract"}, Numbered: true},
		{Key: "methods", Name: "研究方法", Dependencies: []string{"title", "abstract", "background"}, Numbered: true},
		{Key: "results", Name: "结果", Dependencies: []string{"title", "abstract", "methods"}, Numbered: true},
		{Key: "discussion", Name: "讨论", Dependencies: []string{"title", "abstract", "methods", "results"}, Numbered: true},
		{Key: "conclusion", Name: "结论", Dependencies: []string{"title", "abstract", "methods", "results", "discussion"}, Numbered: true},
	})
}
