// Package xsn loads parser-output interchange documents into the unresolved
// model. A document is the YAML rendering of one source file: its namespace,
// using imports, definitions and extension statements. The resolve pass
// itself never touches files; this loader is the boundary to it.
package xsn

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/location"
	"github.com/cdmlang/cdml/internal/model"
)

// Loader fills a model from interchange documents. Shape problems are
// reported to the bag; the loader keeps whatever it could read so the
// resolve pass can still run over a partially broken input.
type Loader struct {
	model *model.Model
	bag   *diagnostics.Bag
	file  string
	block *model.Block
}

func NewLoader(m *model.Model, bag *diagnostics.Bag) *Loader {
	return &Loader{model: m, bag: bag}
}

// LoadFile reads and loads one document from disk.
func (l *Loader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	l.Load(path, data)
	return nil
}

// Load parses one document. The file name is used for locations only.
func (l *Loader) Load(file string, data []byte) {
	l.file = file
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		l.bag.Report(diagnostics.XSNSyntax, l.loc(nil), err.Error())
		return
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if !isMapping(doc) {
		if doc.Kind != 0 { // empty file is fine
			l.bag.Report(diagnostics.XSNSyntax, l.loc(doc), "top level must be a mapping")
		}
		return
	}

	namespace := scalarString(mapGet(doc, "namespace"))
	l.block = model.NewBlock(namespace, nil)
	l.model.Sources = append(l.model.Sources, &model.Source{File: file, Block: l.block})

	l.loadUsings(mapGet(doc, "using"))
	l.loadDefinitions(mapGet(doc, "definitions"))
	l.loadExtensions(mapGet(doc, "extensions"))
}

func (l *Loader) loadUsings(n *yaml.Node) {
	if n == nil {
		return
	}
	if !isSequence(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "using", "expected a sequence")
		return
	}
	for _, item := range n.Content {
		var name, alias string
		switch {
		case isScalar(item):
			name = item.Value
		case isMapping(item):
			name = scalarString(mapGet(item, "name"))
			alias = scalarString(mapGet(item, "as"))
		}
		if name == "" {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(item), "using", "missing artifact name")
			continue
		}
		if alias == "" {
			parts := strings.Split(name, ".")
			alias = parts[len(parts)-1]
		}
		if _, dup := l.block.Usings[alias]; dup {
			l.bag.Report(diagnostics.UsingDuplicate, l.loc(item), alias)
			continue
		}
		l.block.Usings[alias] = &model.Using{Alias: alias, Target: name, Location: l.loc(item)}
	}
}

func (l *Loader) loadDefinitions(n *yaml.Node) {
	if n == nil {
		return
	}
	if !isMapping(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "definitions", "expected a mapping")
		return
	}
	eachPair(n, func(name string, keyNode, body *yaml.Node) {
		absolute := l.absoluteName(name)
		local := name
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			local = name[dot+1:]
		}
		d := l.parseArtifact(absolute, local, keyNode, body)
		if d == nil {
			return
		}
		if !l.model.AddDefinition(d) {
			l.bag.Report(diagnostics.XSNDuplicateDefinition, l.loc(keyNode), absolute)
		}
	})
}

// absoluteName prefixes a definition name with the file's namespace.
func (l *Loader) absoluteName(name string) string {
	if l.block.Namespace == "" {
		return name
	}
	return l.block.Namespace + "." + name
}

func (l *Loader) parseArtifact(absolute, local string, keyNode, body *yaml.Node) *model.Definition {
	if !isMapping(body) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(body), "definition "+absolute, "expected a mapping")
		return nil
	}
	kindStr := scalarString(mapGet(body, "kind"))
	if kindStr == "" {
		kindStr = "type"
	}
	kind, ok := model.KindFromString(kindStr)
	if !ok {
		l.bag.Report(diagnostics.XSNBadKind, l.loc(mapGet(body, "kind")), kindStr)
		return nil
	}
	d := l.model.NewDefinition(kind, local, l.loc(keyNode))
	d.Absolute = absolute
	d.Block = l.block
	l.parseBody(d, body)
	return d
}

// parseBody reads the members and payload common to artifacts and members.
func (l *Loader) parseBody(d *model.Definition, body *yaml.Node) {
	eachPair(body, func(key string, keyNode, value *yaml.Node) {
		switch {
		case strings.HasPrefix(key, "@"):
			d.Annotations = append(d.Annotations, &model.AnnotationAssignment{
				Name:     strings.TrimPrefix(key, "@"),
				Value:    l.parseAnnotationValue(value),
				Location: l.loc(keyNode),
			})
		case key == "type":
			d.Type = l.parseTypeRef(value, false)
		case key == "typeOf":
			d.Type = l.parseTypeRef(value, true)
		case key == "target":
			d.Target = l.parseTypeRef(value, false)
		case key == "on":
			d.On = l.parseExpr(value)
		case key == "keys":
			l.parseForeignKeys(d, value)
		case key == "elements":
			d.Elements = l.parseMembers(value, d, model.KindElement)
		case key == "enum":
			d.Enum = l.parseEnum(value, d)
		case key == "items":
			item := l.model.NewDefinition(model.KindElement, "items", l.loc(value))
			item.Parent = d
			l.parseBody(item, value)
			d.Items = item
		case key == "params":
			d.Params = l.parseMembers(value, d, model.KindParam)
		case key == "actions":
			d.Actions = l.parseMembers(value, d, model.KindAction)
		case key == "includes":
			for _, inc := range sequenceStrings(value) {
				d.Includes = append(d.Includes, refFromDotted(inc, l.loc(value), false))
			}
		case key == "query":
			d.Query = l.parseQuery(value)
		case key == "elements$":
			d.DeclaredElements = l.parseMembers(value, d, model.KindElement)
		case key == "redirected":
			d.RedirectedTo = l.parseTypeRef(value, false)
		case key == "many":
			d.Many = scalarBool(value, false)
		case key == "key":
			d.Key = scalarBool(value, false)
		case key == "abstract":
			d.Abstract = scalarBool(value, false)
		case key == "value":
			d.Value = l.parseExpr(value)
		case key == "kind", key == "doc":
			// handled by the caller / ignored
		default:
			l.bag.Report(diagnostics.XSNBadShape, l.loc(keyNode), "definition "+d.QualifiedName(), fmt.Sprintf("unknown property %q", key))
		}
	})
}

func (l *Loader) parseMembers(n *yaml.Node, parent *model.Definition, kind model.Kind) *model.Members {
	members := model.NewMembers()
	if n == nil {
		return members
	}
	if !isMapping(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "members of "+parent.QualifiedName(), "expected a mapping")
		return members
	}
	eachPair(n, func(name string, keyNode, body *yaml.Node) {
		m := l.model.NewDefinition(kind, name, l.loc(keyNode))
		m.Parent = parent
		m.Block = l.block
		if isMapping(body) {
			l.parseBody(m, body)
		} else if isScalar(body) && body.Value != "" {
			// shorthand: name: TypeName
			m.Type = l.parseTypeRef(body, false)
		}
		if !members.Add(m) {
			l.bag.Report(diagnostics.XSNDuplicateDefinition, l.loc(keyNode), parent.QualifiedName()+"."+name)
		}
	})
	return members
}

func (l *Loader) parseEnum(n *yaml.Node, parent *model.Definition) *model.Members {
	members := model.NewMembers()
	if !isMapping(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "enum of "+parent.QualifiedName(), "expected a mapping")
		return members
	}
	eachPair(n, func(name string, keyNode, body *yaml.Node) {
		v := l.model.NewDefinition(model.KindEnumValue, name, l.loc(keyNode))
		v.Parent = parent
		if isScalar(body) {
			v.Value = &model.Literal{Value: scalarValue(body), Location: l.loc(body)}
		} else if isMapping(body) {
			l.parseBody(v, body)
		}
		if !members.Add(v) {
			l.bag.Report(diagnostics.XSNDuplicateDefinition, l.loc(keyNode), parent.QualifiedName()+"."+name)
		}
	})
	return members
}

func (l *Loader) parseForeignKeys(d *model.Definition, n *yaml.Node) {
	for _, item := range nodeList(n) {
		switch {
		case isScalar(item):
			d.ForeignKeys = append(d.ForeignKeys, &model.ForeignKey{
				Name:     item.Value,
				Ref:      refFromDotted(item.Value, l.loc(item), false),
				Location: l.loc(item),
			})
		case isMapping(item):
			ref := l.parseTypeRef(mapGet(item, "ref"), false)
			name := scalarString(mapGet(item, "as"))
			if name == "" && ref != nil && len(ref.Path) > 0 {
				name = ref.Path[len(ref.Path)-1].ID
			}
			d.ForeignKeys = append(d.ForeignKeys, &model.ForeignKey{Name: name, Ref: ref, Location: l.loc(item)})
		default:
			l.bag.Report(diagnostics.XSNBadShape, l.loc(item), "foreign key", "expected a name or {ref, as}")
		}
	}
}

// parseTypeRef accepts a dotted string, a path sequence, or {ref: [...]}.
func (l *Loader) parseTypeRef(n *yaml.Node, typeOf bool) *model.Reference {
	switch {
	case n == nil:
		return nil
	case isScalar(n):
		return refFromDotted(n.Value, l.loc(n), typeOf)
	case isSequence(n):
		return l.parsePath(n, typeOf)
	case isMapping(n):
		if ref := mapGet(n, "ref"); ref != nil {
			return l.parseTypeRef(ref, typeOf)
		}
	}
	l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "reference", "expected a name or path")
	return nil
}

// parsePath reads a ref path sequence whose steps are scalars or
// {id, args, where} mappings.
func (l *Loader) parsePath(n *yaml.Node, typeOf bool) *model.Reference {
	r := &model.Reference{Location: l.loc(n), TypeOf: typeOf}
	for _, stepNode := range n.Content {
		switch {
		case isScalar(stepNode):
			r.Path = append(r.Path, model.PathStep{ID: stepNode.Value, Location: l.loc(stepNode)})
		case isMapping(stepNode):
			step := model.PathStep{ID: scalarString(mapGet(stepNode, "id")), Location: l.loc(stepNode)}
			if step.ID == "" {
				l.bag.Report(diagnostics.XSNBadShape, l.loc(stepNode), "path step", "missing id")
				continue
			}
			eachPair(mapGet(stepNode, "args"), func(name string, keyNode, value *yaml.Node) {
				step.Args = append(step.Args, &model.NamedArg{Name: name, Value: l.parseExpr(value), Location: l.loc(keyNode)})
			})
			if where := mapGet(stepNode, "where"); where != nil {
				step.Filter = l.parseExpr(where)
			}
			r.Path = append(r.Path, step)
		default:
			l.bag.Report(diagnostics.XSNBadShape, l.loc(stepNode), "path step", "expected a name or mapping")
		}
	}
	if len(r.Path) == 0 {
		return nil
	}
	return r
}

func (l *Loader) loadExtensions(n *yaml.Node) {
	if n == nil {
		return
	}
	if !isSequence(n) {
		l.bag.Report(diagnostics.XSNBadShape, l.loc(n), "extensions", "expected a sequence")
		return
	}
	for _, item := range n.Content {
		if !isMapping(item) {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(item), "extension", "expected a mapping")
			continue
		}
		target := scalarString(mapGet(item, "annotate"))
		if target == "" {
			l.bag.Report(diagnostics.XSNBadShape, l.loc(item), "extension", "missing annotate target")
			continue
		}
		layer := scalarString(mapGet(item, "layer"))
		if layer == "" {
			layer = l.file
		}
		if ext := scalarString(mapGet(item, "extends")); ext != "" {
			l.model.LayerExtends[layer] = ext
		}
		e := &model.Extension{
			Target:             l.absoluteName(target),
			Layer:              layer,
			ElementAssignments: make(map[string][]*model.AnnotationAssignment),
			Location:           l.loc(item),
		}
		eachPair(mapGet(item, "annotations"), func(key string, keyNode, value *yaml.Node) {
			e.Assignments = append(e.Assignments, &model.AnnotationAssignment{
				Name:     strings.TrimPrefix(key, "@"),
				Value:    l.parseAnnotationValue(value),
				Layer:    layer,
				Location: l.loc(keyNode),
			})
		})
		eachPair(mapGet(item, "elements"), func(elem string, elemKey, body *yaml.Node) {
			eachPair(body, func(key string, keyNode, value *yaml.Node) {
				if !strings.HasPrefix(key, "@") {
					l.bag.Report(diagnostics.XSNBadShape, l.loc(keyNode), "extension", "only annotations may be assigned to elements")
					return
				}
				e.ElementAssignments[elem] = append(e.ElementAssignments[elem], &model.AnnotationAssignment{
					Name:     strings.TrimPrefix(key, "@"),
					Value:    l.parseAnnotationValue(value),
					Layer:    layer,
					Location: l.loc(keyNode),
				})
			})
		})
		l.model.Extensions = append(l.model.Extensions, e)
	}
}

// nodeList flattens a possibly missing sequence node.
func nodeList(n *yaml.Node) []*yaml.Node {
	if !isSequence(n) {
		return nil
	}
	return n.Content
}

// refFromDotted builds a reference from a dotted name. All steps share the
// same location; the interchange form does not track per-segment columns of
// a dotted scalar.
func refFromDotted(dotted string, loc location.Location, typeOf bool) *model.Reference {
	r := &model.Reference{Location: loc, TypeOf: typeOf}
	for _, part := range strings.Split(dotted, ".") {
		r.Path = append(r.Path, model.PathStep{ID: part, Location: loc})
	}
	return r
}
