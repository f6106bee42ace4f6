package typing

// NodeSnapshot is a deep, read-only view of one trie node, used by the
// debug introspection endpoint. It shares no mutable state with the
// tree, per spec §3's "deep-copied snapshots" ownership rule.
type NodeSnapshot struct {
	Name            string                  `json:"name"`
	IsResource      bool                    `json:"is_resource"`
	CoreNode        bool                    `json:"core_node"`
	Reliability     float64                 `json:"reliability"`
	PathReliability float64                 `json:"path_reliability,omitempty"`
	Dirs            map[string]NodeSnapshot `json:"dirs,omitempty"`
	Resources       map[string]NodeSnapshot `json:"resources,omitempty"`
}

// Snapshot dumps the whole tree, one root per HTTP method.
func (t *Tree) Snapshot() map[string]NodeSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]NodeSnapshot, len(t.methods))
	for method, level := range t.methods {
		out[method] = NodeSnapshot{
			Name:      method,
			Dirs:      snapshotChildren(level.dirChildren),
			Resources: snapshotChildren(level.resChildren),
		}
	}
	return out
}

func snapshotChildren(children map[string]*Node) map[string]NodeSnapshot {
	if len(children) == 0 {
		return nil
	}
	out := make(map[string]NodeSnapshot, len(children))
	for name, n := range children {
		snap := NodeSnapshot{
			Name:            n.Name,
			IsResource:      n.IsResource,
			CoreNode:        n.CoreNode,
			Reliability:     n.Reliability,
			PathReliability: n.PathReliability,
		}
		if !n.IsResource {
			snap.Dirs = snapshotChildren(n.DirChildren)
			snap.Resources = snapshotChildren(n.ResChildren)
		}
		out[name] = snap
	}
	return out
}
