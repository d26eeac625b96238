package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TriggerEvent is the channel event that causes a message node to be sent.
// The numeric values are persisted and must not change.
type TriggerEvent int

const (
	TriggerHead TriggerEvent = iota
	TriggerOnDelivered
	TriggerOnRead
	TriggerOnReplied
)

// Valid reports whether t is one of the four defined triggers.
func (t TriggerEvent) Valid() bool {
	switch t {
	case TriggerHead, TriggerOnDelivered, TriggerOnRead, TriggerOnReplied:
		return true
	}
	return false
}

func (t TriggerEvent) String() string {
	switch t {
	case TriggerHead:
		return "head"
	case TriggerOnDelivered:
		return "on_delivered"
	case TriggerOnRead:
		return "on_read"
	case TriggerOnReplied:
		return "on_replied"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// ParseTriggerEvent accepts either the String form or the numeric value.
func ParseTriggerEvent(s string) (TriggerEvent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "head", "0":
		return TriggerHead, nil
	case "on_delivered", "1":
		return TriggerOnDelivered, nil
	case "on_read", "2":
		return TriggerOnRead, nil
	case "on_replied", "3":
		return TriggerOnReplied, nil
	}
	return 0, fmt.Errorf("unknown trigger event %q", s)
}

// UnmarshalJSON accepts the numeric value or the String form.
func (t *TriggerEvent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseTriggerEvent(s)
		if err != nil {
			return err
		}
		*t = v
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("trigger event: %w", err)
	}
	*t = TriggerEvent(n)
	return nil
}

// ChannelEventType is an inbound status event reported by the messaging
// channel for a message this system sent.
type ChannelEventType string

const (
	ChannelDelivered ChannelEventType = "sentMessageDELIVERED"
	ChannelRead      ChannelEventType = "sentMessageREAD"
	ChannelReplied   ChannelEventType = "sentMessageREPLIED"
)

// TriggerEvent maps a channel event onto the message trigger it advances.
// ok is false for event types the campaign tree does not react to.
func (e ChannelEventType) TriggerEvent() (TriggerEvent, bool) {
	switch e {
	case ChannelDelivered:
		return TriggerOnDelivered, true
	case ChannelRead:
		return TriggerOnRead, true
	case ChannelReplied:
		return TriggerOnReplied, true
	}
	return 0, false
}

// ChannelEvent is the webhook payload delivered by the channel.
type ChannelEvent struct {
	EventType         ChannelEventType `json:"eventType"`
	WhatsAppMessageID string           `json:"whatsappMessageId"`
}
