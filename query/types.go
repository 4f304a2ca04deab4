package query

import (
	"context"
	"strings"

	"github.com/jonwraymond/querycache/collection"
)

// TypeKeys maps a GraphQL type to the index key parts it records under.
type TypeKeys struct {
	// Node is the global id prefix for single values of the type.
	Node string
	// List is the list key name for connections of the type.
	List string
}

// TypeMap maps GraphQL type names to index key parts. Types missing from
// the map use their lowercased name for both.
type TypeMap map[string]TypeKeys

// DefaultTypes maps the content types of a typical CMS schema. Every post
// type shares the "post" node prefix, so a post id alone identifies it.
func DefaultTypes() TypeMap {
	return TypeMap{
		"Post":      {Node: "post", List: "post"},
		"Page":      {Node: "post", List: "page"},
		"MediaItem": {Node: "post", List: "attachment"},
		"Category":  {Node: "term", List: "category"},
		"Tag":       {Node: "term", List: "post_tag"},
		"User":      {Node: "user", List: "user"},
		"Comment":   {Node: "comment", List: "comment"},
		"Menu":      {Node: "menu", List: "menu"},
		"MenuItem":  {Node: "menu_item", List: "menu_item"},
	}
}

// Lookup returns the key parts for typeName.
func (m TypeMap) Lookup(typeName string) TypeKeys {
	if k, ok := m[typeName]; ok {
		return k
	}
	lower := strings.ToLower(typeName)
	return TypeKeys{Node: lower, List: lower}
}

// Field is a resolved field value reported by the execution engine.
type Field struct {
	// TypeName is the GraphQL type of the value, e.g. "Post".
	TypeName string
	// ID is the raw entity id of a node value.
	ID string
	// Connection marks a list of TypeName, at any depth of the query.
	Connection bool
}

// FieldResolved records f in the request's collection.Recorder. Resolvers
// call it with the ctx passed to the ExecuteFunc.
func (p *Pipeline) FieldResolved(ctx context.Context, f Field) {
	if f.TypeName == "" {
		return
	}
	keys := p.types.Lookup(f.TypeName)
	if f.Connection {
		collection.RecordList(ctx, keys.List)
		return
	}
	if f.ID != "" {
		collection.RecordNode(ctx, collection.NewGlobalID(keys.Node, f.ID))
	}
}
