// Package query runs XPath expressions over parsed input decks.
//
// A Document is projected onto a small XML tree:
//
//	<deck source="case.sif">
//	  <section name="Solver" tag="1" index="2">
//	    <line kind="key_value" key="Equation" value="Heat" raw="  Equation = Heat" index="0">
//	      <cont>...</cont>
//	    </line>
//	  </section>
//	  <extension solver="1" key="Reference Norm">1.0</extension>
//	</deck>
//
// so that questions like "which solvers set Linear System Solver" become
// XPath: //section[@name='Solver'][line[@key='Linear System Solver']].
package query

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/errors"
)

// Tree is the XML projection of one Document.
type Tree struct {
	root *xmlquery.Node
}

// Match is one node selected by an expression.
type Match struct {
	// Name is the element or attribute name.
	Name string `json:"name"`

	// Section is "name tag" of the enclosing section, if any.
	Section string `json:"section,omitempty"`

	Attrs map[string]string `json:"attrs,omitempty"`
	Text  string            `json:"text,omitempty"`
}

// Build projects doc onto an XML tree.
func Build(doc *deck.Document) *Tree {
	root := &xmlquery.Node{Type: xmlquery.DocumentNode}
	deckEl := element("deck")
	xmlquery.AddAttr(deckEl, "source", doc.Meta.SourceFile)
	xmlquery.AddChild(root, deckEl)

	for si, s := range doc.Sections {
		sec := element("section")
		xmlquery.AddAttr(sec, "name", s.Name)
		if s.Tag != nil {
			xmlquery.AddAttr(sec, "tag", *s.Tag)
		}
		xmlquery.AddAttr(sec, "index", strconv.Itoa(si))
		xmlquery.AddChild(deckEl, sec)

		for li, l := range s.Lines {
			line := element("line")
			xmlquery.AddAttr(line, "kind", string(l.Kind))
			if l.Kind.HasKey() {
				xmlquery.AddAttr(line, "key", l.Key)
				xmlquery.AddAttr(line, "value", l.Value)
			}
			if l.SolverID != "" {
				xmlquery.AddAttr(line, "solver", l.SolverID)
			}
			xmlquery.AddAttr(line, "raw", l.Raw)
			xmlquery.AddAttr(line, "index", strconv.Itoa(li))
			for _, c := range l.Continuations {
				cont := element("cont")
				xmlquery.AddChild(cont, &xmlquery.Node{Type: xmlquery.TextNode, Data: c})
				xmlquery.AddChild(line, cont)
			}
			xmlquery.AddChild(sec, line)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(doc.Extensions)) {
		for _, key := range slices.Sorted(maps.Keys(doc.Extensions[id])) {
			ext := element("extension")
			xmlquery.AddAttr(ext, "solver", id)
			xmlquery.AddAttr(ext, "key", key)
			xmlquery.AddChild(ext, &xmlquery.Node{Type: xmlquery.TextNode, Data: doc.Extensions[id][key]})
			xmlquery.AddChild(deckEl, ext)
		}
	}

	return &Tree{root: root}
}

// Select builds the tree for doc and runs expr against it.
func Select(doc *deck.Document, expr string) ([]Match, error) {
	return Build(doc).Select(expr)
}

// Select returns the nodes matched by expr in document order.
func (t *Tree) Select(expr string) ([]Match, error) {
	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}
	nodes := xmlquery.QuerySelectorAll(t.root, compiled)
	out := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toMatch(n))
	}
	return out, nil
}

// Eval evaluates expr. Node-set results are returned as []Match; count(),
// sum() and friends return float64, string or bool.
func (t *Tree) Eval(expr string) (any, error) {
	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}
	v := compiled.Evaluate(xmlquery.CreateXPathNavigator(t.root))
	if _, ok := v.(*xpath.NodeIterator); ok {
		return t.Select(expr)
	}
	return v, nil
}

// XML returns the projection as compact XML text.
func (t *Tree) XML() string {
	return t.root.OutputXML(false)
}

func compile(expr string) (*xpath.Expr, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, &errors.ParseError{Format: "XPath", Message: fmt.Sprintf("%q: %v", expr, err), Err: err}
	}
	return compiled, nil
}

func element(name string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
}

func toMatch(n *xmlquery.Node) Match {
	m := Match{Name: n.Data, Text: n.InnerText()}
	if n.Type == xmlquery.ElementNode && len(n.Attr) > 0 {
		m.Attrs = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			m.Attrs[a.Name.Local] = a.Value
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == xmlquery.ElementNode && p.Data == "section" {
			m.Section = p.SelectAttr("name")
			if tag := p.SelectAttr("tag"); tag != "" {
				m.Section += " " + tag
			}
			break
		}
	}
	return m
}
