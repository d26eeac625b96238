// Package segmentation implements segmentation authoring for the API.
//
// Queries are compiled on every write so a bad filter is rejected with
// ErrInvalidQuery at the request instead of failing later inside the
// periodic reconcile job. Successful writes queue an immediate membership
// sync.
package segmentation
