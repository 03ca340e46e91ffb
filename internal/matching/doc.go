// Package matching implements the request-matching engine: one matcher per
// request attribute, evaluated against a requirement set. Every matcher
// answers three questions — does the request satisfy the constraints, how far
// off is it (a weighted pseudo-edit-distance used only to rank "closest"
// history entries), and which constraints failed (structured mismatches for
// verification output).
//
// The distance weights are diagnostic configuration, not a contract; only
// the invariant "distance is zero iff the matcher matches" is stable.
package matching
