// Package matching caches paginated partner candidates per (user, sport)
// and applies like/dislike decisions optimistically: the candidate leaves
// the list before the server answers, and a failed decision marks the
// whole list stale until it is reloaded.
package matching
