// Package analytics handles visitor reports and behavioral event ingest
// from the tracking snippet, plus the distinct-value lookups used while
// writing segmentation queries.
package analytics
