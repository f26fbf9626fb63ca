//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
)

// Sentiment is the upstream-computed sentiment classification of a message.
// The value is assigned server-side; the client never guesses or recomputes it.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Display folds an absent sentiment into neutral. This is the single place
// that mapping lives; every view and export renders sentiment through it so
// the home and admin views can never diverge. Absence is a display default,
// not an error and not "pending".
func (s Sentiment) Display() Sentiment {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s
	default:
		return SentimentNeutral
	}
}

// Label returns the capitalized display form, e.g. "Neutral".
func (s Sentiment) Label() string {
	d := string(s.Display())
	return strings.ToUpper(d[:1]) + d[1:]
}

// Message is a single message owned by the upstream service. The client holds
// a read-through copy; edits and deletions are server-authoritative and are
// reflected only by refetching, never by speculative local mutation.
type Message struct {
	ID         string    `json:"id"`
	OwnerEmail string    `json:"email"`
	Body       string    `json:"message"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageGroup clusters one owner's messages for the manager view. Order of
// Messages is the server-returned order; the client does not re-sort.
type MessageGroup struct {
	OwnerEmail string    `json:"email"`
	Messages   []Message `json:"messages"`
}

// EditSession is the client-local state of an in-progress edit. At most one
// exists per view; beginning a new edit silently replaces any prior draft.
type EditSession struct {
	TargetMessageID string
	DraftBody       string
}

// DeleteConfirmation is the client-local record of a delete awaiting user
// confirmation. At most one exists per view, and it is cleared unconditionally
// once the confirm or cancel action resolves, whatever the outcome of the
// underlying call.
type DeleteConfirmation struct {
	TargetMessageID string
}
