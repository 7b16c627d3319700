// Package tasklist is a complete example application for the sync engine:
// a shared to-do list whose state is a struct of overlays (title atom, task
// map, fractional-ordered display list, completion counter) and whose wire
// intents cover create, rename, completion, and bulk removal. The server
// and client binaries both drive this application, and its tests double as
// end-to-end exercises of the engines under concurrent edits.
package tasklist
