package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// getStatus renders the prompt state, e.g. "(alice online 0190... held/synced)".
func (a *App) getStatus() string {
	var parts []string
	if a.userID != "" {
		parts = append(parts, a.userID)
	}
	if a.conn != nil {
		if a.conn.Online() {
			parts = append(parts, "online")
		} else {
			parts = append(parts, "offline")
		}
	}
	if a.session != nil {
		st := a.session.Status()
		parts = append(parts, fmt.Sprintf("%s %s/%s", shortID(a.draftID), st.Lease, st.Sync))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to draftkeeper (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
