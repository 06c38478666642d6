package transcript

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSystem, RoleAssistant:
		return true
	default:
		return false
	}
}

// Entry is one turn of a conversation. Slices of entries are kept in
// chronological order and never edited after append.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrEmpty = errors.New("transcript is empty")

func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}
	for i, e := range entries {
		if !e.Role.Valid() {
			return fmt.Errorf("entry %d: unknown role %q", i, e.Role)
		}
		if strings.TrimSpace(e.Content) == "" {
			return fmt.Errorf("entry %d: empty content", i)
		}
	}
	return nil
}

// Format renders entries as "- <role>: <content>" lines in transcript order.
func Format(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Role, strings.TrimSpace(e.Content))
	}
	return b.String()
}

// Bullets renders plain strings as "- item" lines. Voice agent templates
// receive interview questions in this form.
func Bullets(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
