package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PendingPlacement is the partition value of every not-yet-sent entry.
const PendingPlacement = "queued"

// TypeSendEmail marks a direct send entry.
const TypeSendEmail = "send email"

// DateStampLayout is the date-bucket partition format used once an entry
// has been dequeued and sent.
const DateStampLayout = "2006-01-02"

var (
	dateStampPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	sortKeyPattern      = regexp.MustCompile(`^\d+\.\d+$`)
	transportKeyPattern = regexp.MustCompile(`^\d+_\d+$`)
)

// QueueKey is the primary key of a queue entry.
type QueueKey struct {
	QueuePlacement string `json:"queuePlacement" dynamodbav:"queuePlacement"`
	RunAtModified  string `json:"runAtModified" dynamodbav:"runAtModified"`
}

func (k QueueKey) String() string {
	return k.QueuePlacement + "/" + k.RunAtModified
}

// ParseTransportKey rebuilds a queue key from the send-time tag values.
// Message tags cannot carry ".", so the sort key travels with "_" in its
// place.
func ParseTransportKey(dateStamp, runAtModified string) (QueueKey, error) {
	if !dateStampPattern.MatchString(dateStamp) {
		return QueueKey{}, fmt.Errorf("invalid DateStamp %q", dateStamp)
	}
	if !transportKeyPattern.MatchString(runAtModified) {
		return QueueKey{}, fmt.Errorf("invalid RunAtModified %q", runAtModified)
	}
	return QueueKey{
		QueuePlacement: dateStamp,
		RunAtModified:  strings.Replace(runAtModified, "_", ".", 1),
	}, nil
}

// TransportValue encodes a sort key for a message tag.
func TransportValue(runAtModified string) string {
	return strings.Replace(runAtModified, ".", "_", 1)
}

// SortKeyMillis extracts the due time from a sort key. Both the fixed
// width form and legacy variable width keys parse.
func SortKeyMillis(runAtModified string) (int64, error) {
	if !sortKeyPattern.MatchString(runAtModified) {
		return 0, fmt.Errorf("invalid sort key %q", runAtModified)
	}
	return strconv.ParseInt(runAtModified[:strings.IndexByte(runAtModified, '.')], 10, 64)
}

// Payload is what gets sent: either subject/body or a template.
type Payload struct {
	Type        string   `json:"type,omitempty" dynamodbav:"type,omitempty"`
	Subject     string   `json:"subject,omitempty" dynamodbav:"subject,omitempty"`
	Body        string   `json:"body,omitempty" dynamodbav:"body,omitempty"`
	TemplateID  string   `json:"templateId,omitempty" dynamodbav:"templateId,omitempty"`
	SourceEmail string   `json:"sourceEmail,omitempty" dynamodbav:"sourceEmail,omitempty"`
	TagReason   []string `json:"tagReason,omitempty" dynamodbav:"tagReason,omitempty"`
	TagOnClick  string   `json:"tagOnClick,omitempty" dynamodbav:"tagOnClick,omitempty"`
}

// QueueItem is one scheduled send intent.
type QueueItem struct {
	QueuePlacement string `json:"queuePlacement" dynamodbav:"queuePlacement"`
	RunAtModified  string `json:"runAtModified" dynamodbav:"runAtModified"`
	RunAt          int64  `json:"runAt" dynamodbav:"runAt"`

	Payload

	Subscriber        *Subscriber `json:"subscriber,omitempty" dynamodbav:"subscriber,omitempty"`
	SubscriberID      string      `json:"subscriberId" dynamodbav:"subscriberId"`
	AutoresponderID   string      `json:"autoresponderId,omitempty" dynamodbav:"autoresponderId,omitempty"`
	AutoresponderStep string      `json:"autoresponderStep,omitempty" dynamodbav:"autoresponderStep,omitempty"`

	Attempts  int   `json:"attempts" dynamodbav:"attempts"`
	Failed    bool  `json:"failed" dynamodbav:"failed"`
	Completed bool  `json:"completed" dynamodbav:"completed"`
	Open      int64 `json:"open,omitempty" dynamodbav:"open,omitempty"`
	Click     int64 `json:"click,omitempty" dynamodbav:"click,omitempty"`
}

// Key returns the entry's primary key.
func (q *QueueItem) Key() QueueKey {
	return QueueKey{QueuePlacement: q.QueuePlacement, RunAtModified: q.RunAtModified}
}

// Pending reports whether the entry still waits for the worker.
func (q *QueueItem) Pending() bool {
	return q.QueuePlacement == PendingPlacement
}

// HasTagReason reports whether any of tags is recorded as an origin.
func (q *QueueItem) HasTagReason(tags ...string) bool {
	for _, reason := range q.TagReason {
		for _, t := range tags {
			if reason == t {
				return true
			}
		}
	}
	return false
}
