package campaign

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
)

var (
	ErrNoHeadMessage  = errors.New("campaign: no head message")
	ErrMultipleHeads  = errors.New("campaign: more than one head message")
	ErrDuplicateChild = errors.New("campaign: parent already has a child for this trigger")
	ErrOrphanMessage  = errors.New("campaign: parent message not in campaign")
	ErrInvalidTrigger = errors.New("campaign: invalid trigger")
)

const noParent = -1

type edge struct {
	parent int
	event  domain.TriggerEvent
}

type node struct {
	msg    domain.Message
	parent int
}

// MessageTree is an immutable index over one campaign's messages. Nodes
// live in a slice and refer to each other by position.
type MessageTree struct {
	nodes    []node
	byID     map[uuid.UUID]int
	children map[edge]int
	head     int
}

// Build indexes msgs and verifies the tree shape: at most one head, every
// parent present, no two children of a parent sharing a trigger and no
// cycles.
func Build(msgs []domain.Message) (*MessageTree, error) {
	t := &MessageTree{
		nodes:    make([]node, len(msgs)),
		byID:     make(map[uuid.UUID]int, len(msgs)),
		children: make(map[edge]int, len(msgs)),
		head:     noParent,
	}
	for i, m := range msgs {
		if !m.Trigger.Valid() {
			return nil, fmt.Errorf("%w: message %s has %s", ErrInvalidTrigger, m.ID, m.Trigger)
		}
		t.nodes[i] = node{msg: m, parent: noParent}
		t.byID[m.ID] = i
	}

	for i, m := range msgs {
		if m.ParentID == nil {
			if m.Trigger != domain.TriggerHead {
				return nil, fmt.Errorf("%w: root message %s has %s", ErrInvalidTrigger, m.ID, m.Trigger)
			}
			if t.head != noParent {
				return nil, ErrMultipleHeads
			}
			t.head = i
			continue
		}
		if m.Trigger == domain.TriggerHead {
			return nil, fmt.Errorf("%w: child message %s has head trigger", ErrInvalidTrigger, m.ID)
		}
		p, ok := t.byID[*m.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrOrphanMessage, m.ID)
		}
		e := edge{parent: p, event: m.Trigger}
		if _, taken := t.children[e]; taken {
			return nil, fmt.Errorf("%w: parent %s %s", ErrDuplicateChild, *m.ParentID, m.Trigger)
		}
		t.children[e] = i
		t.nodes[i].parent = p
	}

	// Every node must reach the head; anything else is a detached cycle.
	for i := range t.nodes {
		steps := 0
		for j := i; t.nodes[j].parent != noParent; j = t.nodes[j].parent {
			if steps++; steps > len(t.nodes) {
				return nil, fmt.Errorf("%w: cycle through %s", ErrOrphanMessage, t.nodes[i].msg.ID)
			}
		}
	}
	return t, nil
}

// Len returns the number of messages in the tree.
func (t *MessageTree) Len() int { return len(t.nodes) }

// Head returns the campaign entry message.
func (t *MessageTree) Head() (domain.Message, error) {
	if t.head == noParent {
		return domain.Message{}, ErrNoHeadMessage
	}
	return t.nodes[t.head].msg, nil
}

// Message looks up a node by id.
func (t *MessageTree) Message(id uuid.UUID) (domain.Message, bool) {
	i, ok := t.byID[id]
	if !ok {
		return domain.Message{}, false
	}
	return t.nodes[i].msg, true
}

// ChildFor returns the child of id that fires on event.
func (t *MessageTree) ChildFor(id uuid.UUID, event domain.TriggerEvent) (domain.Message, bool) {
	i, ok := t.byID[id]
	if !ok {
		return domain.Message{}, false
	}
	c, ok := t.children[edge{parent: i, event: event}]
	if !ok {
		return domain.Message{}, false
	}
	return t.nodes[c].msg, true
}

// DescendantsFor returns the direct children of id that fire on event.
// With the one-child-per-trigger invariant the result has at most one
// element.
func (t *MessageTree) DescendantsFor(id uuid.UUID, event domain.TriggerEvent) []domain.Message {
	if c, ok := t.ChildFor(id, event); ok {
		return []domain.Message{c}
	}
	return nil
}

// Ancestors walks from id's parent up to the head.
func (t *MessageTree) Ancestors(id uuid.UUID) []domain.Message {
	i, ok := t.byID[id]
	if !ok {
		return nil
	}
	var out []domain.Message
	for p := t.nodes[i].parent; p != noParent; p = t.nodes[p].parent {
		out = append(out, t.nodes[p].msg)
	}
	return out
}
