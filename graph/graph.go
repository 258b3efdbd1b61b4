package graph

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/pickme-go/errors"
)

// Plan describes one join for rendering.
type Plan struct {
	Name     string
	Type     string
	Left     string
	LeftKey  string
	Right    string
	RightKey string
	// Output names the projection, `combine` or `group`.
	Output string
}

type Graph struct {
	parent   string
	vizGraph *gographviz.Graph
	nodes    map[string]bool
}

func NewGraph() (*Graph, error) {
	parent := `joins`
	g := gographviz.NewGraph()
	if err := g.SetName(parent); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}

	if err := g.AddAttr(parent, `rankdir`, `LR`); err != nil {
		return nil, err
	}

	if err := g.AddAttr(parent, `splines`, `ortho`); err != nil {
		return nil, err
	}

	if err := g.AddNode(parent, `def`, map[string]string{
		`shape`: `plaintext`,
		`label`: `<
     		<table BORDER="0" CELLBORDER="1" CELLSPACING="0">
       			<tr><td WIDTH="50" BGCOLOR="deepskyblue1"></td><td><B>Source</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="grey95"></td><td><B>Key Index</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="slateblue4"></td><td><B>Joiner</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="orange"></td><td><B>Output</B></td></tr>
     		</table>
  >`,
	}); err != nil {
		return nil, err
	}

	return &Graph{
		parent:   parent,
		vizGraph: g,
		nodes:    map[string]bool{},
	}, nil
}

func (g *Graph) addNode(name string, attrs map[string]string) error {
	if g.nodes[name] {
		return nil
	}

	if err := g.vizGraph.AddNode(g.parent, name, attrs); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`cannot add node [%s]`, name))
	}
	g.nodes[name] = true

	return nil
}

func (g *Graph) edge(from, to, label string) error {
	var attrs map[string]string
	if label != `` {
		attrs = map[string]string{`label`: quote(label)}
	}

	if err := g.vizGraph.AddEdge(from, to, true, attrs); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`cannot add edge [%s -> %s]`, from, to))
	}

	return nil
}

// Source adds a source node. Plans reading the same source share it.
func (g *Graph) Source(name string) (string, error) {
	id := nodeID(`src`, name)
	return id, g.addNode(id, map[string]string{
		`color`:     `black`,
		`fillcolor`: `deepskyblue1`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     quote(name),
	})
}

func (g *Graph) Index(parent string, plan string, key string) (string, error) {
	id := nodeID(`idx`, plan)
	if err := g.addNode(id, map[string]string{
		`shape`:     `cylinder`,
		`fillcolor`: `grey95`,
		`style`:     `filled`,
		`label`:     quote(`key index`),
	}); err != nil {
		return ``, err
	}

	return id, g.edge(parent, id, key)
}

func (g *Graph) Joiner(left string, index string, plan string, typ string, key string) (string, error) {
	id := nodeID(`join`, plan)
	if err := g.addNode(id, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `slateblue4`,
		`style`:     `filled`,
		`shape`:     `square`,
		`label`:     fmt.Sprintf(`< <B>%s JOIN</B><BR/>%s >`, strings.ToUpper(typ), html(plan)),
	}); err != nil {
		return ``, err
	}

	if err := g.edge(left, id, key); err != nil {
		return ``, err
	}

	return id, g.edge(index, id, `lookup`)
}

func (g *Graph) Sink(parent string, plan string, output string) (string, error) {
	id := nodeID(`out`, plan)
	if err := g.addNode(id, map[string]string{
		`color`:     `black`,
		`fillcolor`: `orange`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     quote(output),
	}); err != nil {
		return ``, err
	}

	return id, g.edge(parent, id, ``)
}

// Plan adds the nodes of p. Plan names must be unique within a graph.
func (g *Graph) Plan(p Plan) error {
	if g.nodes[nodeID(`join`, p.Name)] {
		return errors.New(fmt.Sprintf(`plan [%s] already rendered`, p.Name))
	}

	left, err := g.Source(p.Left)
	if err != nil {
		return err
	}

	right, err := g.Source(p.Right)
	if err != nil {
		return err
	}

	index, err := g.Index(right, p.Name, p.RightKey)
	if err != nil {
		return err
	}

	joiner, err := g.Joiner(left, index, p.Name, p.Type, p.LeftKey)
	if err != nil {
		return err
	}

	_, err = g.Sink(joiner, p.Name, p.Output)
	return err
}

func (g *Graph) Build() string {
	return g.vizGraph.String()
}

// Render builds the DOT description of plans.
func Render(plans ...Plan) (string, error) {
	g, err := NewGraph()
	if err != nil {
		return ``, err
	}

	for _, p := range plans {
		if err := g.Plan(p); err != nil {
			return ``, err
		}
	}

	return g.Build(), nil
}

func nodeID(prefix string, name string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('_')
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

var htmlEscaper = strings.NewReplacer(`&`, `&amp;`, `<`, `&lt;`, `>`, `&gt;`, `"`, `&quot;`)

func html(s string) string {
	return htmlEscaper.Replace(s)
}
