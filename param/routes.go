package param

// mustBuild panics only at package init time against a fixed, hand-written
// spec list — any failure here is a programming error in this file, not
// something a request could trigger.
func mustBuild(specs []Spec) *Schema {
	s, err := Build(specs)
	if err != nil {
		panic(err)
	}
	return s
}

// GetQuery is the query schema for GET /{db}/{type}/{id}.
var GetQuery = mustBuild([]Spec{
	{Name: "path", Kind: KindString, Default: ""},
	{Name: "max_level", Kind: KindInt, Default: -1},
	{Name: "tracking", Kind: KindBool, Default: false},
	{Name: "meta", Kind: KindBool, Default: true},
	{Name: "shallow", Kind: KindString, Default: ""},
})

// PatchQuery is the query schema for PATCH /{db}/{type}/{id} (the path is
// carried in the request body alongside the patch data, not as a query
// parameter, so there is nothing to declare here).
var PatchQuery = mustBuild(nil)

// CloneQuery is the query schema for GET /{db}/{type}/{id}/clone.
var CloneQuery = mustBuild([]Spec{
	{Name: "shallow", Kind: KindString, Default: ""},
})

// SafeLinksQuery is the query schema for GET /{db}/{type}/{id}/safe-links.
var SafeLinksQuery = mustBuild([]Spec{
	{Name: "paths", Kind: KindString, Default: ""},
	{Name: "debug", Kind: KindBool, Default: false},
})

// GraphQuery is the query schema for GET /{db}/{type}/{id}/graph.
var GraphQuery = mustBuild([]Spec{
	{Name: "debug", Kind: KindBool, Default: false},
})

// SchemaGetQuery is the query schema for GET /{db}/schema.
var SchemaGetQuery = mustBuild([]Spec{
	{Name: "include_id", Kind: KindBool, Default: false},
})

// SchemaPostQuery is the query schema for POST /{db}/schema.
var SchemaPostQuery = mustBuild([]Spec{
	{Name: "force", Kind: KindBool, Default: false},
})

// ObjectListQuery is the query schema for GET /{db}/{type} (no parameters).
var ObjectListQuery = mustBuild(nil)

// TypeListQuery is the query schema for GET /{db} (no parameters).
var TypeListQuery = mustBuild(nil)
