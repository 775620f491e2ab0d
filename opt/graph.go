package opt

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"
)

// Graph renders the memo as a graphviz dot graph: one node per group,
// listing its variants, with edges to the child groups its quantifiers
// range over. Debugging aid only.
func (m *Memo) Graph() string {
	g := dot.NewGraph(dot.Directed)
	nodes := make(map[GroupID]dot.Node, len(m.groups))
	for _, grp := range m.groups[1:] {
		var b strings.Builder
		fmt.Fprintf(&b, "group %d\n", grp.id)
		for _, e := range grp.exprs {
			fmt.Fprintf(&b, "%s\n", e.Fingerprint())
		}
		nodes[grp.id] = g.Node(fmt.Sprintf("g%d", grp.id)).Label(b.String())
	}
	for _, grp := range m.groups[1:] {
		for _, e := range grp.exprs {
			for _, q := range e.quns {
				g.Edge(nodes[grp.id], nodes[q.input]).Label(string(q.alias))
			}
		}
	}
	return g.String()
}
