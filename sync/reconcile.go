// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

// CopyAction describes a source message that is missing in the target
type CopyAction struct {
	Key     Key
	Message Message
	// Stamp is set when Key was synthesized from the UID. The copy must then
	// carry Key in its IdentityHeader, or the next run would copy it again.
	Stamp bool
}

// DeleteAction describes a key that only exists in the target.
// All target messages with that key are listed.
type DeleteAction struct {
	Key      Key
	Messages []Message
}

// Plan is the outcome of reconciling one folder pair
type Plan struct {
	Copy    []CopyAction
	Delete  []DeleteAction
	Matched int
}

// Empty returns true if the plan has nothing to do
func (p *Plan) Empty() bool {
	return len(p.Copy) == 0 && len(p.Delete) == 0
}

// DeleteMessages returns every target message to flag, in plan order
func (p *Plan) DeleteMessages() []Message {
	var msgs []Message
	for _, d := range p.Delete {
		msgs = append(msgs, d.Messages...)
	}
	return msgs
}

// Reconcile compares the source set src with the target set dst.
// Copies follow the iteration order of src. Deletions are only planned
// when replicateOnly is false.
func Reconcile(src, dst *MessageSet, replicateOnly bool) *Plan {
	plan := &Plan{}

	src.each(func(e *entry) {
		if dst.Contains(e.identity.Key) {
			plan.Matched++
			return
		}
		plan.Copy = append(plan.Copy, CopyAction{
			Key:     e.identity.Key,
			Message: e.messages[0],
			Stamp:   e.identity.Synthetic,
		})
	})

	if replicateOnly {
		return plan
	}

	dst.each(func(e *entry) {
		if src.Contains(e.identity.Key) {
			return
		}
		msgs := make([]Message, len(e.messages))
		copy(msgs, e.messages)
		plan.Delete = append(plan.Delete, DeleteAction{
			Key:      e.identity.Key,
			Messages: msgs,
		})
	})
	return plan
}
