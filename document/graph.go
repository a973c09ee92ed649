package document

import (
	"sort"

	"github.com/scidms/dms/path"
	"github.com/scidms/dms/resolver"
	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

// Edge is one directed link edge in the object graph, from a parent node
// label to a child node label (see nodeLabel).
type Edge [2]string

// Graph walks every link attribute reachable from (typeName, id) and
// returns the set of visited node labels and the edges between them. A
// node already visited in the current walk is not re-descended into
// (guards against a cyclic link graph), though the edge into it is still
// recorded.
//
// Grounded on the mupif/EDM prototype's _make_link_digraph.
func Graph(sch *schema.Schema, st store.Store, typeName, id string, debug bool) ([]string, []Edge, error) {
	nodes := map[string]bool{}
	edges := map[Edge]bool{}
	visited := map[string]bool{}

	var descend func(klass, objID string) error
	descend = func(klass, objID string) error {
		key := klass + "\x00" + objID
		label := nodeLabel(klass, objID, debug)
		nodes[label] = true
		if visited[key] {
			return nil
		}
		visited[key] = true

		obj, err := st.FindOneByID(klass, objID)
		if err != nil {
			return err
		}
		typeSchema, err := sch.Type(klass)
		if err != nil {
			return err
		}

		for attrName, attr := range typeSchema {
			if !attr.IsLink() {
				continue
			}
			val, ok := obj[attrName]
			if !ok || val == nil {
				continue
			}
			target := *attr.Link
			if attr.IsListLink() {
				ids, err := toStringSlice(val)
				if err != nil {
					return err
				}
				for _, lid := range ids {
					edges[Edge{label, nodeLabel(target, lid, debug)}] = true
					if err := descend(target, lid); err != nil {
						return err
					}
				}
			} else {
				lid, ok := val.(string)
				if !ok {
					continue
				}
				edges[Edge{label, nodeLabel(target, lid, debug)}] = true
				if err := descend(target, lid); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := descend(typeName, id); err != nil {
		return nil, nil, err
	}

	nodeList := make([]string, 0, len(nodes))
	for n := range nodes {
		nodeList = append(nodeList, n)
	}
	sort.Strings(nodeList)

	edgeList := make([]Edge, 0, len(edges))
	for e := range edges {
		edgeList = append(edgeList, e)
	}
	sort.Slice(edgeList, func(i, j int) bool {
		if edgeList[i][0] != edgeList[j][0] {
			return edgeList[i][0] < edgeList[j][0]
		}
		return edgeList[i][1] < edgeList[j][1]
	})

	return nodeList, edgeList, nil
}

// SafeLinks returns the node labels of the object graph rooted at
// (typeName, id) that do NOT lie on any simple path from the root to one
// of the resolved targets of paths — the part of the tree a planned
// modification is guaranteed not to touch.
//
// Grounded on the mupif/EDM prototype's dms_api_path_safe_links, with its
// networkx DiGraph/all_simple_paths replaced by a small hand-rolled DFS:
// no graph library appears anywhere in the retrieval pack, and these
// object graphs are small (one service instance's document tree), so a
// plain recursive walk is the right-sized tool.
func SafeLinks(sch *schema.Schema, st store.Store, typeName, id string, rawPaths []string, debug bool) ([]string, error) {
	modIDs := map[string]bool{}
	for _, raw := range rawPaths {
		p, err := path.Parse(raw)
		if err != nil {
			return nil, err
		}
		results, _, err := resolver.Resolve(sch, st, typeName, id, p)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			modIDs[nodeLabel(r.Type, r.ID, debug)] = true
		}
	}

	nodes, edges, err := Graph(sch, st, typeName, id, debug)
	if err != nil {
		return nil, err
	}
	adj := map[string][]string{}
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
	}

	root := nodeLabel(typeName, id, debug)
	via := map[string]bool{}
	for modID := range modIDs {
		collectSimplePathNodes(adj, root, modID, map[string]bool{}, nil, via)
	}

	var safe []string
	for _, n := range nodes {
		if !via[n] {
			safe = append(safe, n)
		}
	}
	sort.Strings(safe)
	return safe, nil
}

func collectSimplePathNodes(adj map[string][]string, current, target string, onStack map[string]bool, stack []string, out map[string]bool) {
	if onStack[current] {
		return
	}
	onStack[current] = true
	stack = append(stack, current)

	if current == target {
		for _, n := range stack {
			out[n] = true
		}
	} else {
		for _, next := range adj[current] {
			collectSimplePathNodes(adj, next, target, onStack, stack, out)
		}
	}

	onStack[current] = false
}
