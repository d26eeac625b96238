// Package api exposes the engage HTTP surface: segmentation and campaign
// authoring, channel credentials, visitor analytics ingest and the inbound
// channel webhook.
//
// Every route under /api except the webhook runs under a tenant taken from
// the X-Account-ID header. Handlers only decode, call a service and map its
// sentinel errors onto status codes; they hold no business rules.
package api
