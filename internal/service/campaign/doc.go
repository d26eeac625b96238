// Package campaign implements campaign lifecycle management and message
// tree authoring.
//
// The service layer guards the tree invariants at write time: one head per
// campaign, children only under a parent of the same campaign and at most
// one child per (parent, trigger) slot. It depends on repository
// interfaces defined in this package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
