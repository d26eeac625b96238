// Package channel manages an account's messaging channel connection:
// credentials with a connectivity probe, and the local cache of the
// channel's message templates.
package channel
