// Package catalog holds the product model returned by the validation
// service and a time-boxed cache around the catalog fetch.
//
// The cache treats its snapshot as authoritative for the length of the
// freshness window (60 seconds by default). Both Get and Refresh honor the
// window, so a burst of UI re-renders translates to at most one network
// call per minute.
package catalog
