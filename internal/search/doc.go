// Package search backs the command palette: static navigation sections
// filtered by title, plus ranked component results from a Searcher.
//
// Two Searchers exist. The SQLite store answers from its own full-text
// index; RemoteClient calls a search RPC on another service and validates
// every response row before handing it out.
package search
