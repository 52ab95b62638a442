// Package respcache caches successful GET responses and invalidates them after
// successful writes to the same resource family.
//
// Keys have the form "METHOD route-template path?query", for example
// "GET /books/{id} /books/42?". Invalidate("/books") therefore removes every
// cached GET whose route template starts with /books.
//
// The cache is best effort. Store failures are logged and the request is served
// from the live handler. A read that started before an invalidation may store its
// stale result right after the invalidation; the entry then lives until its ttl.
package respcache
