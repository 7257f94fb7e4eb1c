package format

import (
	"html"
	"strings"
)

// Kind classifies a line of a Message.
type Kind int

const (
	KindHeader Kind = iota
	KindField
	KindTimestamp
	KindFallback
	KindBlank
)

// Style controls how a field value is emphasised in Telegram HTML.
type Style int

const (
	Plain Style = iota
	Bold
	Code
)

// Line is one labelled line of a notification.
type Line struct {
	Kind  Kind
	Icon  string
	Label string
	Value string
	Style Style
}

// Message is an ordered sequence of lines built from one record.
type Message struct {
	Lines []Line
}

func (m *Message) add(l Line) { m.Lines = append(m.Lines, l) }

// OptionalCount returns the number of populated field lines.
func (m Message) OptionalCount() int {
	n := 0
	for _, l := range m.Lines {
		if l.Kind == KindField {
			n++
		}
	}
	return n
}

// HasFallback reports whether the raw-dump line was appended.
func (m Message) HasFallback() bool {
	for _, l := range m.Lines {
		if l.Kind == KindFallback {
			return true
		}
	}
	return false
}

// Field returns the value of the first field line with the given label.
func (m Message) Field(label string) (string, bool) {
	for _, l := range m.Lines {
		if l.Kind == KindField && l.Label == label {
			return l.Value, true
		}
	}
	return "", false
}

// Text renders the message as Telegram HTML. Values are escaped.
func (m Message) Text() string {
	var b strings.Builder
	for i, l := range m.Lines {
		if i > 0 {
			b.WriteByte('\n')
			// Blank separator after the header and before the trailer lines.
			if (l.Kind == KindTimestamp || l.Kind == KindFallback) && m.Lines[i-1].Kind != KindBlank {
				b.WriteByte('\n')
			}
		}
		b.WriteString(renderLine(l))
		if l.Kind == KindHeader && i+1 < len(m.Lines) && m.Lines[i+1].Kind == KindField {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderLine(l Line) string {
	if l.Kind == KindBlank {
		return ""
	}
	var b strings.Builder
	if l.Icon != "" {
		b.WriteString(l.Icon)
		b.WriteByte(' ')
	}
	if l.Kind == KindHeader {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(l.Label))
		b.WriteString("</b>")
		return b.String()
	}
	b.WriteString(html.EscapeString(l.Label))
	b.WriteString(": ")
	v := html.EscapeString(l.Value)
	switch l.Style {
	case Bold:
		b.WriteString("<b>" + v + "</b>")
	case Code:
		b.WriteString("<code>" + v + "</code>")
	default:
		b.WriteString(v)
	}
	return b.String()
}
