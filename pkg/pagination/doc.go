// Package pagination follows server-driven cursors on Ximilar list endpoints.
//
// List endpoints answer with pages of the form
//
//	{"count": 42, "next": "https://api.ximilar.com/recognition/v2/label/?page=2", "results": [...]}
//
// The absolute next URL is turned back into a suffix relative to the
// endpoint's base URL (see Relative) and requested through the same endpoint,
// so authentication and workspace scoping apply to every page.
//
// Example usage:
//
//	labels, err := pagination.All(ctx, ep, "recognition/v2/label/", nil)
//
//	it := pagination.NewIterator(ctx, ep, "recognition/v2/label/", nil)
//	for {
//		item, err := it.Next()
//		if err == iterator.Done {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		...
//	}
//
// All collects every item eagerly; Iterator fetches one page at a time.
package pagination
