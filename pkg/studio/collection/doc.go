// Package collection resolves named sets of markdown documents into typed
// entries.
//
// A Collection lists its directory through a studio.Adapter, maps slugs to
// files once and caches the map, and loads entries on request:
//
//	posts := collection.Define(collection.Init[Post]{
//		Name:   "posts",
//		Path:   "content/posts",
//		Schema: schema.FieldMap[Post](fields, defaults),
//	})
//	s, err := collection.DefineStudioConfig(collection.StudioConfig{
//		Collections: []collection.Handle{posts},
//	})
//	p, err := collection.Get[Post](s, "posts")
//	entry, err := p.Entry(ctx, "hello-world")
//
// Entries are validated strictly by default: a schema failure is returned as
// a *studio.ValidationError. Collections declared Lenient keep the entry and
// report the failure through Entry.Issues.
package collection
