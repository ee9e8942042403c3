package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RunREPL reads commands until EOF, exit, or ctx is done. Generations run in
// the background so cancel-generate can stop them.
func (a *App) RunREPL(ctx context.Context) error {
	a.async = true
	defer a.Close()

	a.printf("Mini-Visionary studio at %s (type 'help' for commands)\n", a.cfg.APIURL)
	if a.store.Authenticated() {
		if _, err := a.store.RefreshProfile(ctx); err != nil {
			a.printf("%s\n", Describe(err))
		}
	}

	for ctx.Err() == nil {
		line, err := promptLine(a.in, a.out, a.prompt())
		if errors.Is(err, io.EOF) {
			a.printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			a.printf("Bye!\n")
			return nil
		}

		if err := a.Execute(ctx, fields); err != nil {
			a.printf("error: %s\n", Describe(err))
		}
	}
	return nil
}

func (a *App) prompt() string {
	if !a.store.Authenticated() {
		return "visionctl> "
	}
	p, ok := a.store.Profile()
	if !ok {
		return "visionctl (?)> "
	}
	return fmt.Sprintf("visionctl (%s, %d credits)> ", p.Email, a.store.CachedCredits())
}
