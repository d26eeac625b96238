// Package domain holds the engage value types: accounts, visitors and their
// behavioral events, segmentations, campaigns with their message trees, and
// the messaging channel's credentials, templates and status events.
//
// Nothing here touches storage or HTTP. Methods are limited to pure checks
// and conversions such as TriggerEvent parsing and credential masking, and
// the package imports no other internal package.
package domain
