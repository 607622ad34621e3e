// Package api holds types, error values and interfaces shared between
// goheap packages and applications embedding the managed heap.
package api
