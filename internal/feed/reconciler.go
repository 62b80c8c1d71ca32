package feed

import (
	"github.com/go-playground/validator/v10"

	"discord-chat/internal/models"
)

// Outcome describes what applying a live event did to the pages.
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeInserted
	OutcomeReplaced
	OutcomeSoftDeleted
	OutcomeDuplicate
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeSoftDeleted:
		return "soft_deleted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStale:
		return "stale"
	default:
		return "dropped"
	}
}

// Changed reports whether the pages were modified.
func (o Outcome) Changed() bool {
	return o == OutcomeInserted || o == OutcomeReplaced || o == OutcomeSoftDeleted
}

var validate = validator.New()

// ValidateEvent checks the required fields of a live event.
func ValidateEvent(ev models.LiveEvent) error {
	if ev.Message == nil {
		return &MalformedEventError{Reason: "missing message"}
	}
	if err := validate.Struct(ev); err != nil {
		return &MalformedEventError{Reason: "invalid fields", Err: err}
	}
	return nil
}

// Apply merges ev into pages and returns the resulting pages. The input
// slices are never modified; changed pages are copied.
//
// Created events are deduplicated by id and land in the newest page.
// Updated and deleted events only touch messages already cached, keep their
// slot, and lose against a cached copy with a newer UpdatedAt.
func Apply(pages []Page, ev models.LiveEvent) ([]Page, Outcome, error) {
	if err := ValidateEvent(ev); err != nil {
		return pages, OutcomeDropped, err
	}
	msg := *ev.Message

	switch ev.Kind {
	case models.EventCreated:
		return applyCreated(pages, msg)
	case models.EventUpdated:
		if msg.Deleted {
			return applyDeleted(pages, msg)
		}
		return applyReplace(pages, msg)
	case models.EventDeleted:
		return applyDeleted(pages, msg)
	}
	return pages, OutcomeDropped, &MalformedEventError{Reason: "unknown kind " + string(ev.Kind)}
}

func applyCreated(pages []Page, msg models.Message) ([]Page, Outcome, error) {
	if _, _, ok := locate(pages, msg.ID); ok {
		return pages, OutcomeDuplicate, &DuplicateInsertError{MessageID: msg.ID}
	}
	if msg.Deleted {
		msg = msg.SoftDeleted(msg.UpdatedAt)
	}
	if len(pages) == 0 {
		return []Page{{Messages: []models.Message{msg}}}, OutcomeInserted, nil
	}

	head := pages[0].Messages
	pos := 0
	for pos < len(head) && head[pos].ID > msg.ID {
		pos++
	}
	merged := make([]models.Message, 0, len(head)+1)
	merged = append(merged, head[:pos]...)
	merged = append(merged, msg)
	merged = append(merged, head[pos:]...)

	out := clonePages(pages)
	out[0] = Page{Messages: merged, NextCursor: pages[0].NextCursor}
	return out, OutcomeInserted, nil
}

func applyReplace(pages []Page, msg models.Message) ([]Page, Outcome, error) {
	pi, mi, ok := locate(pages, msg.ID)
	if !ok {
		return pages, OutcomeDropped, nil
	}
	cached := pages[pi].Messages[mi]
	if msg.UpdatedAt.Before(cached.UpdatedAt) {
		return pages, OutcomeStale, nil
	}
	msg.ChatID = cached.ChatID
	return replaceAt(pages, pi, mi, msg), OutcomeReplaced, nil
}

func applyDeleted(pages []Page, msg models.Message) ([]Page, Outcome, error) {
	pi, mi, ok := locate(pages, msg.ID)
	if !ok {
		return pages, OutcomeDropped, nil
	}
	cached := pages[pi].Messages[mi]
	if msg.UpdatedAt.Before(cached.UpdatedAt) {
		return pages, OutcomeStale, nil
	}
	return replaceAt(pages, pi, mi, cached.SoftDeleted(msg.UpdatedAt)), OutcomeSoftDeleted, nil
}

// locate searches newest pages first.
func locate(pages []Page, id int64) (int, int, bool) {
	for pi, page := range pages {
		for mi, m := range page.Messages {
			if m.ID == id {
				return pi, mi, true
			}
		}
	}
	return 0, 0, false
}

func replaceAt(pages []Page, pi, mi int, msg models.Message) []Page {
	out := clonePages(pages)
	msgs := make([]models.Message, len(pages[pi].Messages))
	copy(msgs, pages[pi].Messages)
	msgs[mi] = msg
	out[pi] = Page{Messages: msgs, NextCursor: pages[pi].NextCursor}
	return out
}

func clonePages(pages []Page) []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}
