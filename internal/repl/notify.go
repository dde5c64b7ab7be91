package repl

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/steveyegge/dupes/internal/review"
)

// printNotifier writes resolution notices as one colored line each
type printNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewNotifier returns a review.Notifier that prints to out (stdout if nil).
// Safe for concurrent use by ResolveMany.
func NewNotifier(out io.Writer) review.Notifier {
	if out == nil {
		out = os.Stdout
	}
	return &printNotifier{out: out}
}

func (p *printNotifier) Notify(n review.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n.Kind == review.NoticeError {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(p.out, "%s %s (%s)\n", red("✗"), n.Message, n.MatchID)
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(p.out, "%s %s (%s)\n", green("✓"), n.Message, n.MatchID)
}
