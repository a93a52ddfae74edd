package extract

import (
	"github.com/Veraticus/kvlabel/internal/model"
)

const (
	namespaceField = "namespace"
	headerField    = "header"
)

// Leaf is a scalar reached by the walker together with its path.
type Leaf struct {
	Path  model.Path
	Value model.Value
}

// Walk descends v and returns every scalar leaf with its structural path.
// Lists add a "[]" segment per element. An object carrying a "namespace"
// field, directly or inside a "header" object, re-roots the path at
// "<namespace>"; the namespace field itself is not reported as a leaf.
func (e *Extractor) Walk(v model.Value, path model.Path) []Leaf {
	var leaves []Leaf
	e.walk(v, path, 0, &leaves)
	return leaves
}

func (e *Extractor) walk(v model.Value, path model.Path, depth int, out *[]Leaf) {
	// Keyed regions wrap the decoded literal in one extra object level.
	if depth > e.opts.MaxDepth+1 {
		e.logger.Debug("walk depth limit reached", "path", path.String())
		return
	}

	switch v.Kind {
	case model.KindArray:
		for _, item := range v.Items {
			e.walk(item, path.Append(model.ListMarker), depth+1, out)
		}
	case model.KindObject:
		obj, ns, ok := splitNamespace(v)
		if ok {
			path = model.Path{model.NamespaceLabel(ns.Text())}
		}
		for _, m := range obj.Members {
			e.walk(m.Value, path.Append(m.Key), depth+1, out)
		}
	default:
		*out = append(*out, Leaf{Path: path, Value: v})
	}
}

// splitNamespace looks for a namespace field in obj's "header" object first,
// then in obj itself. It returns obj with that field removed.
func splitNamespace(obj model.Value) (model.Value, model.Value, bool) {
	for i, m := range obj.Members {
		if m.Key != headerField || m.Value.Kind != model.KindObject {
			continue
		}
		header, ns, ok := removeMember(m.Value, namespaceField)
		if !ok {
			break
		}
		members := make([]model.Member, len(obj.Members))
		copy(members, obj.Members)
		members[i] = model.Member{Key: m.Key, Value: header}
		return model.Object(members...), ns, true
	}

	return removeMember(obj, namespaceField)
}

func removeMember(obj model.Value, key string) (model.Value, model.Value, bool) {
	for i, m := range obj.Members {
		if m.Key != key {
			continue
		}
		members := make([]model.Member, 0, len(obj.Members)-1)
		members = append(members, obj.Members[:i]...)
		members = append(members, obj.Members[i+1:]...)
		return model.Object(members...), m.Value, true
	}
	return obj, model.Value{}, false
}
