// Package render turns an export.Description into DOT text and, through
// the Graphviz "dot" binary, into an image file.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"

	"graphsketch/internal/export"
)

var (
	_ encoding.Attributer = dotNode{}
	_ dot.Node            = dotNode{}
)

// dotNode is one node record. Its DOT id is the record name, so records
// sharing a name land on the same Graphviz node.
type dotNode struct {
	id    int64
	name  string
	attrs export.Attrs
}

func (n dotNode) ID() int64     { return n.id }
func (n dotNode) DOTID() string { return n.name }

func (n dotNode) Attributes() []encoding.Attribute { return attributes(n.attrs) }

func attributes(a export.Attrs) []encoding.Attribute {
	out := make([]encoding.Attribute, 0, len(a))
	for _, k := range a.Keys() {
		out = append(out, encoding.Attribute{Key: k, Value: a[k]})
	}
	return out
}

// EncodeDOT writes desc as a DOT digraph. gonum writes the node section;
// edge statements are appended in record order, which is the order
// Graphviz receives them.
func EncodeDOT(desc *export.Description) ([]byte, error) {
	g := multi.NewDirectedGraph()

	// The first record for a name owns the node; later duplicates only
	// contribute their attributes as extra statements.
	known := make(map[string]struct{}, len(desc.Nodes))
	for i, rec := range desc.Nodes {
		g.AddNode(dotNode{id: int64(i), name: rec.Name, attrs: rec.Attrs})
		known[rec.Name] = struct{}{}
	}

	for i, rec := range desc.Edges {
		if _, ok := known[rec.From]; !ok {
			return nil, fmt.Errorf("edge %d: unknown node %q", i, rec.From)
		}
		if _, ok := known[rec.To]; !ok {
			return nil, fmt.Errorf("edge %d: unknown node %q", i, rec.To)
		}
	}

	out, err := dot.MarshalMulti(g, "", "", "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to encode DOT: %w", err)
	}
	if len(desc.Edges) == 0 {
		return out, nil
	}

	// Reopen the graph body and append the edges.
	body := bytes.TrimSuffix(bytes.TrimRight(out, "\n"), []byte("}"))
	var buf bytes.Buffer
	buf.Write(body)
	buf.WriteString("\n\t// Edge definitions.\n")
	for _, rec := range desc.Edges {
		buf.WriteString("\t" + dotID(rec.From) + " -> " + dotID(rec.To))
		writeAttrs(&buf, rec.Attrs)
		buf.WriteString(";\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

func writeAttrs(buf *bytes.Buffer, a export.Attrs) {
	if len(a) == 0 {
		return
	}
	buf.WriteString(" [")
	for i, attr := range attributes(a) {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(dotID(attr.Key) + "=" + dotID(attr.Value))
	}
	buf.WriteString("]")
}

var (
	plainID   = regexp.MustCompile(`^[a-zA-Z_\x{80}-\x{10FFFF}][a-zA-Z0-9_\x{80}-\x{10FFFF}]*$`)
	numeralID = regexp.MustCompile(`^-?(\.[0-9]+|[0-9]+(\.[0-9]*)?)$`)
)

// dotID quotes s unless it is a bare DOT identifier or numeral. Keywords are
// always quoted.
func dotID(s string) string {
	switch strings.ToLower(s) {
	case "node", "edge", "graph", "digraph", "subgraph", "strict":
		return strconv.Quote(s)
	}
	if plainID.MatchString(s) || numeralID.MatchString(s) {
		return s
	}
	return strconv.Quote(s)
}
