package status

import (
	"strings"
)

// StatusConsumer gathers a tree of human-readable status lines from a
// hierarchy of components. A component Emits its own lines, Forks a
// child consumer per subcomponent, and Joins once it has emitted
// everything. The assembled report indents each level.
type StatusConsumer struct {
	entries []entry
	joined  bool
}

type entry struct {
	line  string
	child *StatusConsumer
}

func NewStatusConsumer() *StatusConsumer {
	return &StatusConsumer{}
}

func (sc *StatusConsumer) Emit(lines ...string) {
	if len(lines) == 0 {
		lines = []string{""}
	}
	for _, line := range lines {
		sc.entries = append(sc.entries, entry{line: line})
	}
}

func (sc *StatusConsumer) Fork() *StatusConsumer {
	child := NewStatusConsumer()
	sc.entries = append(sc.entries, entry{child: child})
	return child
}

func (sc *StatusConsumer) Join() {
	sc.joined = true
}

// Consume invokes fun for every assembled line, children indented under
// their parents.
func (sc *StatusConsumer) Consume(fun func(string)) {
	sc.consume("", fun)
}

func (sc *StatusConsumer) consume(indent string, fun func(string)) {
	for _, e := range sc.entries {
		if e.child == nil {
			fun(indent + e.line)
		} else {
			e.child.consume(indent+"  ", fun)
		}
	}
}

func (sc *StatusConsumer) String() string {
	sb := new(strings.Builder)
	sc.Consume(func(line string) {
		sb.WriteString(line)
		sb.WriteString("\n")
	})
	return sb.String()
}
