package processing

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// TargetVariable is the graph variable holding the output path. It is
// bound on the gpt command line with -Ptarget=<path>.
const TargetVariable = "target"

const parametersClass = "com.bc.ceres.binding.dom.XppDomElement"

// element is a generic XML element used to render graphs.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*element `xml:",any"`
}

func newElement(name string, children ...*element) *element {
	return &element{XMLName: xml.Name{Local: name}, Children: children}
}

func textElement(name, text string) *element {
	return &element{XMLName: xml.Name{Local: name}, Text: text}
}

func (e *element) attr(name, value string) *element {
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	return e
}

// child returns the direct child with the given name, creating it.
func (e *element) child(name string) *element {
	for _, c := range e.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	c := newElement(name)
	e.Children = append(e.Children, c)
	return c
}

// BuildGraph renders op as a SNAP processing graph: one Read node per
// input, the steps in order, and a Write node storing BEAM-DIMAP at
// ${target}.
func BuildGraph(op Operation) ([]byte, error) {
	if len(op.Inputs) == 0 {
		return nil, fmt.Errorf("operation %s has no inputs", op.Name)
	}
	if len(op.Steps) == 0 {
		return nil, fmt.Errorf("operation %s has no steps", op.Name)
	}

	graph := newElement("graph", textElement("version", "1.0")).attr("id", op.Name)
	ids := make(map[string]int)
	nodeID := func(operator string) string {
		ids[operator]++
		if n := ids[operator]; n > 1 {
			return fmt.Sprintf("%s(%d)", operator, n)
		}
		return operator
	}

	var reads []string
	for _, in := range op.Inputs {
		id := nodeID("Read")
		reads = append(reads, id)
		graph.Children = append(graph.Children,
			node(id, "Read", nil, map[string]string{"file": in}))
	}

	sources := reads
	for _, step := range op.Steps {
		if strings.TrimSpace(step.Operator) == "" {
			return nil, fmt.Errorf("operation %s has a step without operator", op.Name)
		}
		id := nodeID(step.Operator)
		graph.Children = append(graph.Children, node(id, step.Operator, sources, step.Parameters))
		sources = []string{id}
	}

	graph.Children = append(graph.Children, node(nodeID("Write"), "Write", sources, map[string]string{
		"file":       "${" + TargetVariable + "}",
		"formatName": FormatName,
	}))

	out, err := xml.MarshalIndent(graph, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render graph: %w", err)
	}
	return append(out, '\n'), nil
}

func node(id, operator string, sources []string, params map[string]string) *element {
	src := newElement("sources")
	for i, s := range sources {
		name := "sourceProduct"
		if i > 0 {
			name = fmt.Sprintf("sourceProduct.%d", i)
		}
		src.Children = append(src.Children, newElement(name).attr("refid", s))
	}

	parameters := newElement("parameters").attr("class", parametersClass)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parent := parameters
		path := strings.Split(k, "/")
		for _, p := range path[:len(path)-1] {
			parent = parent.child(p)
		}
		parent.Children = append(parent.Children, textElement(path[len(path)-1], params[k]))
	}

	return newElement("node",
		textElement("operator", operator),
		src,
		parameters,
	).attr("id", id)
}
