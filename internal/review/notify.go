package review

import "github.com/steveyegge/dupes/internal/types"

// NoticeKind distinguishes success and failure notices.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice tells the operator how a resolution went.
type Notice struct {
	Kind    NoticeKind
	MatchID string
	Action  types.Action
	Message string
	Err     error
}

// Notifier receives notices. Implementations must not block for long.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}
