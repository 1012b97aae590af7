package router

import (
	"fmt"
	"slices"
	"strings"
)

// helpText renders help in Telegram HTML parse mode.
func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return helpTopHTML(root)
	}

	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.TrimPrefix(strings.ToLower(p), "/")
		n, ok := cur.child(p)
		if !ok {
			leaf, ok := alias[p]
			if !ok || leaf == nil || leaf.cmd == nil {
				return "❓ <b>Unknown command</b>\nType <code>/help</code> to list commands."
			}
			cur, full = leaf, splitRoute(leaf.cmd.Route)
			break
		}
		cur = n
		full = append(full, n.name)
	}
	return helpNodeHTML(cur, full)
}

func lockPrefix(locked bool) string {
	if locked {
		return "• 🔒 "
	}
	return "• "
}

func helpTopHTML(root *cmdNode) string {
	type row struct {
		name, desc string
		lock       bool
	}
	var rows []row
	for _, name := range root.childNames() {
		n, _ := root.child(name)
		rows = append(rows, row{name: name, desc: summarizeNodeDesc(n), lock: nodeIsOwnerOnly(n)})
	}
	// Owner-only entries sink to the bottom.
	slices.SortStableFunc(rows, func(a, b row) int {
		switch {
		case a.lock == b.lock:
			return strings.Compare(a.name, b.name)
		case b.lock:
			return -1
		default:
			return 1
		}
	})

	var b strings.Builder
	b.WriteString("📚 <b>Commands</b>\nType <code>/help &lt;cmd&gt;</code> for details.\n\n")
	for _, r := range rows {
		b.WriteString(lockPrefix(r.lock) + "<code>/" + escape(r.name) + "</code>")
		if r.desc != "" {
			b.WriteString(" - " + escape(r.desc))
		}
		b.WriteByte('\n')
	}
	b.WriteString("\n🔒 marks owner-only commands.")
	return b.String()
}

func helpNodeHTML(cur *cmdNode, full []string) string {
	lines := []string{fmt.Sprintf("📚 <b>Help</b> <code>/%s</code>", escape(strings.Join(full, " ")))}

	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, escape(d))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "🔒 <i>Owner only</i>")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", "<b>Usage</b>")
			for _, l := range strings.Split(u, "\n") {
				lines = append(lines, "<code>"+escape(l)+"</code>")
			}
		}
		if short := buildShortcuts(*c); len(short) > 0 {
			lines = append(lines, "", "<b>Shortcuts</b>")
			for _, s := range short {
				lines = append(lines, "• <code>/"+escape(s)+"</code>")
			}
		}
	} else if nodeIsOwnerOnly(cur) {
		lines = append(lines, "🔒 <i>Owner only</i>")
	}

	if len(cur.children) > 0 {
		lines = append(lines, "", "<b>Subcommands</b>")
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			line := lockPrefix(nodeIsOwnerOnly(n)) + "<code>/" + escape(strings.Join(append(slices.Clone(full), name), " ")) + "</code>"
			if d := summarizeNodeDesc(n); d != "" {
				line += " - " + escape(d)
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func summarizeNodeDesc(n *cmdNode) string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	k := min(3, len(kids))
	s := strings.Join(kids[:k], ", ")
	if len(kids) > k {
		s += ", …"
	}
	return "subcommands: " + s
}

// nodeIsOwnerOnly reports whether a leaf is owner-only, or a group holds
// nothing but owner-only commands.
func nodeIsOwnerOnly(n *cmdNode) bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	for _, ch := range n.children {
		if !nodeIsOwnerOnly(ch) {
			return false
		}
	}
	return len(n.children) > 0
}

func buildShortcuts(c Command) []string {
	var out []string
	if menu, ok := telegramCommandNameFromRoute(splitRoute(c.Route)); ok && strings.Contains(strings.TrimSpace(c.Route), " ") {
		out = append(out, menu)
	}
	for _, a := range c.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		out = append(out, a)
		if sa := sanitizeTelegramCommand(a); sa != "" {
			out = append(out, sa)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
