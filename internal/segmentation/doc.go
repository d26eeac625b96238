// Package segmentation resolves segment audiences and keeps the persisted
// membership mapping in step with them.
//
// A segmentation's filter is an RQL string over the owning account's
// behavioral events. QueryBuilder compiles it into a parameterized SQL
// statement, Resolver runs it, and Syncer records newly matched visitors.
// Membership is additive: a visitor who matched once stays enrolled.
package segmentation
