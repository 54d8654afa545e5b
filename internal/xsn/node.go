package xsn

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cdmlang/cdml/internal/location"
)

// yaml.Node navigation helpers. Documents are walked by hand instead of
// struct unmarshalling so every model node keeps its source position.

func (l *Loader) loc(n *yaml.Node) location.Location {
	if n == nil {
		return location.Location{File: l.file}
	}
	return location.At(l.file, n.Line, n.Column)
}

// eachPair calls fn for every key/value pair of a mapping node, in document
// order.
func eachPair(n *yaml.Node, fn func(key string, keyNode, value *yaml.Node)) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i].Value, n.Content[i], n.Content[i+1])
	}
}

// mapGet returns the value node of a mapping key, or nil.
func mapGet(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func isMapping(n *yaml.Node) bool  { return n != nil && n.Kind == yaml.MappingNode }
func isSequence(n *yaml.Node) bool { return n != nil && n.Kind == yaml.SequenceNode }
func isScalar(n *yaml.Node) bool   { return n != nil && n.Kind == yaml.ScalarNode }

// scalarString returns a scalar node's string value, "" otherwise.
func scalarString(n *yaml.Node) string {
	if !isScalar(n) {
		return ""
	}
	return n.Value
}

// scalarBool interprets a scalar as a boolean, defaulting to def.
func scalarBool(n *yaml.Node, def bool) bool {
	if !isScalar(n) {
		return def
	}
	b, err := strconv.ParseBool(n.Value)
	if err != nil {
		return def
	}
	return b
}

// scalarValue converts a YAML scalar into the literal value used in
// expressions: bool, int64, float64 or string.
func scalarValue(n *yaml.Node) interface{} {
	if !isScalar(n) {
		return nil
	}
	switch n.Tag {
	case "!!null":
		return nil
	case "!!bool":
		b, _ := strconv.ParseBool(n.Value)
		return b
	case "!!int":
		i, _ := strconv.ParseInt(n.Value, 10, 64)
		return i
	case "!!float":
		f, _ := strconv.ParseFloat(n.Value, 64)
		return f
	default:
		return n.Value
	}
}

// sequenceStrings reads a sequence of scalars; non-scalars are skipped.
func sequenceStrings(n *yaml.Node) []string {
	if !isSequence(n) {
		return nil
	}
	var out []string
	for _, it := range n.Content {
		if isScalar(it) {
			out = append(out, it.Value)
		}
	}
	return out
}
