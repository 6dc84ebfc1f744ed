// Package scrub redacts personal identifiers and credentials from free text
// before it is persisted. Findings carry positions and rule IDs, never the
// matched value.
package scrub
