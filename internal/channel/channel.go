// Package channel defines the contract between the campaign engine and the
// external messaging channel that delivers templated messages.
package channel

import (
	"context"
	"errors"

	"github.com/zntrlhub/engage/internal/domain"
)

var (
	// ErrGatewayUnavailable means the account's credentials are missing or
	// failed their last connectivity probe. Sends are skipped, not retried.
	ErrGatewayUnavailable = errors.New("channel: gateway not connected")
	// ErrGatewayError wraps transport and HTTP failures from the channel.
	// Callers return it so the job runner's retry policy applies.
	ErrGatewayError = errors.New("channel: gateway error")
)

// CustomParam is one named template substitution.
type CustomParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Recipient is one addressee of a template send.
type Recipient struct {
	WhatsAppNumber string        `json:"whatsappNumber"`
	CustomParams   []CustomParam `json:"customParams"`
}

// Delivery pairs a recipient with the id the channel assigned to the
// message it received.
type Delivery struct {
	WhatsAppNumber string
	ExternalID     string
}

// SendRequest is one template broadcast.
type SendRequest struct {
	TemplateName  string
	BroadcastName string
	Recipients    []Recipient
}

// Gateway is the delivery collaborator. Implementations must not retry
// Send on their own.
type Gateway interface {
	// Send delivers the template and returns one Delivery per recipient
	// whose external id could be determined.
	Send(ctx context.Context, creds domain.ChannelCredentials, req SendRequest) ([]Delivery, error)
	// Templates returns one page of templates; an empty page means the
	// listing is exhausted.
	Templates(ctx context.Context, creds domain.ChannelCredentials, page int) ([]domain.Template, error)
	// Probe reports whether the credentials reach the channel.
	Probe(ctx context.Context, creds domain.ChannelCredentials) bool
}
