// Package sequence implements status-gated mutation of generated email
// sequences: partial thread updates while the sequence is still editable,
// the operator mark-ready transition, and best-effort audit of both.
//
// Mutability is a pure function of lifecycle state: once a sequence is
// deployed or completed its content is frozen no matter who asks.
package sequence
