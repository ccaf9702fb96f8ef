// Package journal records completed batch runs in a SQLite database under the
// log directory.
//
// The journal is strictly observational: nothing in dispatch or resume logic
// reads it, and a write failure degrades to a warning. Resume state lives in
// the per-tile progress records at the destination, never here.
package journal
