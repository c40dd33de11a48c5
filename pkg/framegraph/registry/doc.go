// Package registry provides a generic, thread-safe, insertion-ordered registry.
//
// framegraph uses it for node type tables and the operation registry. Both
// are populated once at process start and read during runs, so Add refuses
// duplicate keys instead of silently replacing them.
//
// Example:
//
//	r := registry.New[string, Handler]()
//	if err := r.Add("gamma", gammaHandler); err != nil {
//	    return err // errors.Is(err, registry.ErrDuplicate)
//	}
//	h, ok := r.Get("gamma")
package registry
