package campaignsync

import (
	"github.com/onegreenvn/campaign-monitor/internal/models"
)

// Projector derives per-recipient delivery statuses from cumulative counters
// and refines them with message-specific events.
//
// The initial projection assumes delivery order equals recipient order: the
// first Sent positions are marked sent, the next Failed failed, the next
// NotExist not_exist. That is only approximately true, so a position may show
// the wrong status until an event naming that recipient overrides it. The
// client has no data to recover the exact mapping.
type Projector struct {
	recipients []models.Recipient
	statuses   []models.RecipientStatus
}

// NewProjector initializes the projection for recipients and counters
func NewProjector(recipients []models.Recipient, counters models.Counters) *Projector {
	p := &Projector{
		recipients: append([]models.Recipient(nil), recipients...),
		statuses:   make([]models.RecipientStatus, len(recipients)),
	}

	i := 0
	fill := func(n int, status models.RecipientStatus) {
		for ; n > 0 && i < len(p.statuses); n-- {
			p.statuses[i] = status
			i++
		}
	}
	fill(counters.Sent, models.RecipientSent)
	fill(counters.Failed, models.RecipientFailed)
	fill(counters.NotExist, models.RecipientNotExist)
	fill(len(p.statuses), models.RecipientPending)

	// Recipient-level statuses from the detail record are exact, so they win
	for idx, r := range p.recipients {
		if r.Status.IsValid() && r.Status != models.RecipientPending {
			p.statuses[idx] = r.Status
		}
	}
	return p
}

// Len returns the number of recipients
func (p *Projector) Len() int {
	return len(p.statuses)
}

// Statuses returns a copy of the projection
func (p *Projector) Statuses() []models.RecipientStatus {
	return append([]models.RecipientStatus(nil), p.statuses...)
}

// Find resolves a recipient by exact match on name or phone
func (p *Projector) Find(key string) (int, bool) {
	if key == "" {
		return -1, false
	}
	for idx, r := range p.recipients {
		if r.Phone == key || r.Name == key {
			return idx, true
		}
	}
	return -1, false
}

// ApplyEvent overwrites the status of the recipient named by key. It reports
// whether the projection changed.
func (p *Projector) ApplyEvent(key string, status models.RecipientStatus) bool {
	idx, ok := p.Find(key)
	if !ok {
		return false
	}
	return p.ApplyAt(idx, status)
}

// ApplyAt overwrites the status at idx. Pending is never written: a position
// that left pending cannot go back.
func (p *Projector) ApplyAt(idx int, status models.RecipientStatus) bool {
	if idx < 0 || idx >= len(p.statuses) {
		return false
	}
	if !status.IsValid() || status == models.RecipientPending {
		return false
	}
	if p.statuses[idx] == status {
		return false
	}
	p.statuses[idx] = status
	return true
}

// Advance brings the projection in line with newer counters: for each outcome
// whose count exceeds the positions already holding it, the first pending
// positions take that outcome. It reports whether anything changed.
func (p *Projector) Advance(counters models.Counters) bool {
	have := make(map[models.RecipientStatus]int, 3)
	for _, s := range p.statuses {
		have[s]++
	}

	changed := false
	i := 0
	fill := func(want int, status models.RecipientStatus) {
		for n := want - have[status]; n > 0; n-- {
			for i < len(p.statuses) && p.statuses[i] != models.RecipientPending {
				i++
			}
			if i == len(p.statuses) {
				return
			}
			p.statuses[i] = status
			changed = true
		}
	}
	fill(counters.Sent, models.RecipientSent)
	fill(counters.Failed, models.RecipientFailed)
	fill(counters.NotExist, models.RecipientNotExist)
	return changed
}

// MarkRemainingStopped flips every pending position to stopped and returns
// how many changed
func (p *Projector) MarkRemainingStopped() int {
	n := 0
	for idx, s := range p.statuses {
		if s == models.RecipientPending {
			p.statuses[idx] = models.RecipientStopped
			n++
		}
	}
	return n
}

// Rebase moves the projection onto a refetched recipient list and counters.
// Statuses from the detail record win. A position that already left pending
// keeps its status (matched by index when the list length is unchanged, by
// phone or name otherwise), and the remaining pending positions follow
// counters. It reports whether the projection changed.
func (p *Projector) Rebase(recipients []models.Recipient, counters models.Counters) bool {
	next := NewProjector(recipients, models.Counters{})
	sameOrder := len(recipients) == len(p.recipients)

	for idx, status := range p.statuses {
		if status == models.RecipientPending {
			continue
		}
		target := idx
		if !sameOrder {
			var ok bool
			if target, ok = next.findRecipient(p.recipients[idx]); !ok {
				continue
			}
		}
		if next.statuses[target] == models.RecipientPending {
			next.statuses[target] = status
		}
	}
	next.Advance(counters)

	changed := len(next.statuses) != len(p.statuses)
	for idx := 0; !changed && idx < len(next.statuses); idx++ {
		changed = next.statuses[idx] != p.statuses[idx]
	}
	*p = *next
	return changed
}

func (p *Projector) findRecipient(r models.Recipient) (int, bool) {
	if r.Phone != "" {
		return p.Find(r.Phone)
	}
	return p.Find(r.Name)
}

// restore replaces the projection, used when an optimistic stop is rolled back
func (p *Projector) restore(statuses []models.RecipientStatus) {
	if len(statuses) != len(p.statuses) {
		return
	}
	copy(p.statuses, statuses)
}
