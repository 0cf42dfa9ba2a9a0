// Package api defines the types and interfaces shared between the
// runtime integration layer and the collector engine: the tagged
// value word, the object format vtable, the scan state handed to
// scanners, and the recoverable error kinds of the fix and commit
// protocols.
package api
