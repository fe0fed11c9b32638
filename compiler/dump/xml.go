package dump

import (
	"encoding/xml"

	"tlog.app/go/errors"

	"github.com/slowlang/aot/compiler/ir"
)

type (
	xmlMethod struct {
		XMLName   xml.Name      `xml:"Method"`
		Name      string        `xml:"Name,attr"`
		Variables []xmlVariable `xml:"Variable"`
		Blocks    []xmlBlock    `xml:"BasicBlock"`
	}

	xmlVariable struct {
		Name string `xml:"Name,attr"`
		Type string `xml:"Type,attr"`
	}

	xmlBlock struct {
		ID        int           `xml:"Id,attr"`
		Index     int           `xml:"Index,attr"`
		Type      string        `xml:"Type,attr"`
		Operators []xmlOperator `xml:"Operator"`
		Edges     []xmlEdge     `xml:"Edge"`
	}

	xmlOperator struct {
		Text string `xml:",chardata"`
	}

	xmlEdge struct {
		Kind string `xml:"Kind,attr"`
		To   int    `xml:"To,attr"`
	}
)

// AppendXML appends the XML form of m. Block order is as in AppendText.
func AppendXML(b []byte, m *ir.Method, order []ir.BlockID) ([]byte, error) {
	x := xmlMethod{Name: m.Name}

	if g := m.CFG; g != nil {
		for id, e := range g.Exprs {
			switch e.(type) {
			case *ir.Variable, *ir.Temporary:
				x.Variables = append(x.Variables, xmlVariable{
					Name: string(g.AppendExpr(nil, ir.ExprID(id))),
					Type: e.ExprType().String(),
				})
			}
		}

		if order == nil {
			order = g.SpanningTree().Blocks
		}

		for i, id := range order {
			bl := g.Block(id)

			xb := xmlBlock{ID: int(id), Index: i, Type: bl.Kind.String()}

			for _, op := range bl.Ops {
				xb.Operators = append(xb.Operators, xmlOperator{Text: string(g.AppendOperator(nil, op))})
			}

			for _, s := range bl.Successors() {
				xb.Edges = append(xb.Edges, xmlEdge{Kind: "normal", To: int(s)})
			}

			for _, s := range bl.ExceptionSuccessors() {
				xb.Edges = append(xb.Edges, xmlEdge{Kind: "exception", To: int(s)})
			}

			x.Blocks = append(x.Blocks, xb)
		}
	}

	data, err := xml.MarshalIndent(x, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal %v", m.Name)
	}

	b = append(b, data...)
	b = append(b, '\n')

	return b, nil
}
