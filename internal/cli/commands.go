package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

func (a *App) help(_ context.Context, _ []string) error {
	authed := a.store.Authenticated()

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, name := range a.order {
		if !a.gate.Check(name, authed).Allowed {
			continue
		}
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %s\t%s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintf(w, "  exit\tleave (interactive mode)\n")
	return w.Flush()
}

func (a *App) health(ctx context.Context, _ []string) error {
	client := a.store.Client()

	live, err := client.GetLiveness(ctx)
	if err != nil {
		return err
	}
	a.printf("live:  %s (version %s, up %s)\n", live.Status, live.Version, live.Uptime)

	ready, err := client.GetReadiness(ctx)
	if err != nil {
		return err
	}
	a.printf("ready: %s\n", ready.Status)
	for _, name := range slices.Sorted(maps.Keys(ready.Checks)) {
		a.printf("  %s: %s\n", name, ready.Checks[name])
	}
	return nil
}

func (a *App) products(ctx context.Context, _ []string) error {
	items, err := a.store.Client().Products(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tNAME\tCREDITS\tPRICE")
	for _, p := range items {
		credits := strconv.Itoa(p.Credits)
		if p.Mode == "subscription" {
			credits = "ad-free"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f %s\n", p.SKU, p.Name, credits, p.Price, strings.ToUpper(p.Currency))
	}
	return w.Flush()
}

func (a *App) login(ctx context.Context, args []string) error {
	email, err := a.argOrPrompt(args, "Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.in, a.out, "Password: ")
	if err != nil {
		return err
	}

	sess, err := a.store.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return a.startSession(sess)
}

func (a *App) signup(ctx context.Context, args []string) error {
	email, err := a.argOrPrompt(args, "Email: ")
	if err != nil {
		return err
	}
	var name string
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}

	password, err := promptPassword(a.in, a.out, "Password: ")
	if err != nil {
		return err
	}
	again, err := promptPassword(a.in, a.out, "Repeat password: ")
	if err != nil {
		return err
	}
	if password != again {
		return errors.New("passwords do not match")
	}

	sess, err := a.store.Signup(ctx, visionsdk.SignupRequest{Email: email, Password: password, DisplayName: name})
	if err != nil {
		return err
	}
	return a.startSession(sess)
}

func (a *App) startSession(sess visionsdk.Session) error {
	if err := a.tokens.Save(sess.Token); err != nil {
		return err
	}
	a.printf("logged in as %s (%d credits)\n", sess.Profile.Email, sess.Profile.Credits)
	return nil
}

func (a *App) argOrPrompt(args []string, prompt string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	v, err := promptLine(a.in, a.out, prompt)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", errors.New("a value is required")
	}
	return v, nil
}

func (a *App) me(ctx context.Context, _ []string) error {
	p, err := a.store.RefreshProfile(ctx)
	if err != nil {
		return err
	}

	plan := p.Plan
	if p.AdFree {
		plan += " (ad-free)"
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "email:\t%s\n", p.Email)
	fmt.Fprintf(w, "name:\t%s\n", p.DisplayName)
	fmt.Fprintf(w, "credits:\t%d\n", p.Credits)
	fmt.Fprintf(w, "plan:\t%s\n", plan)
	fmt.Fprintf(w, "member since:\t%s\n", p.CreatedAt.Local().Format(time.DateOnly))
	return w.Flush()
}

// credits shows the cached balance without touching the network.
func (a *App) credits(_ context.Context, _ []string) error {
	n := a.store.CachedCredits()
	if a.store.Pending(visionsdk.ActionGeneratePoster) {
		a.printf("%d credits (a generation is pending)\n", n)
		return nil
	}
	a.printf("%d credits\n", n)
	return nil
}

func (a *App) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(cmdGenerate, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	size := fs.String("size", "", "poster size, e.g. 1024x1792")
	style := fs.String("style", "", "style hint")
	if err := fs.Parse(args); err != nil {
		return usageError{usage: a.commands[cmdGenerate].usage}
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return usageError{usage: a.commands[cmdGenerate].usage}
	}
	if a.store.Pending(visionsdk.ActionGeneratePoster) {
		return visionsdk.ErrActionPending
	}

	req := visionsdk.PosterRequest{Prompt: prompt, Size: *size, Style: *style}
	if !a.async {
		return a.runGenerate(ctx, req)
	}

	a.background.Go(func() {
		if err := a.runGenerate(ctx, req); err != nil {
			a.printf("\ngenerate failed: %s\n", Describe(err))
		}
	})
	a.printf("generating... (cancel-generate to stop)\n")
	return nil
}

func (a *App) runGenerate(ctx context.Context, req visionsdk.PosterRequest) error {
	poster, err := a.store.GeneratePoster(ctx, req)
	if err != nil {
		return err
	}
	a.printf("poster ready: %s (%dx%d)\n", poster.URL, poster.Width, poster.Height)
	a.printf("%d credits left\n", a.store.CachedCredits())
	return nil
}

func (a *App) cancelGenerate(_ context.Context, _ []string) error {
	if !a.store.Cancel(visionsdk.ActionGeneratePoster) {
		a.printf("no generation in progress\n")
		return nil
	}
	a.printf("generation canceled; %d credits\n", a.store.CachedCredits())
	return nil
}

func (a *App) library(ctx context.Context, args []string) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usageError{usage: a.commands[cmdLibrary].usage}
		}
		limit = n
	}

	posters, err := a.store.Posters(ctx, limit)
	if err != nil {
		return err
	}
	if len(posters) == 0 {
		a.printf("no posters yet; try generate <prompt>\n")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSIZE\tPROMPT\tURL")
	for _, p := range posters {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\n",
			p.ID, p.CreatedAt.Local().Format(time.DateTime), p.Width, p.Height, truncate(p.Prompt, 40), p.URL)
	}
	return w.Flush()
}

func (a *App) wallet(ctx context.Context, _ []string) error {
	wal, err := a.store.Wallet(ctx)
	if err != nil {
		return err
	}

	a.printf("%d credits\n", wal.Credits)
	if len(wal.Receipts) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIPT\tDATE\tSKU\tCREDITS\tAMOUNT")
	for _, r := range wal.Receipts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f %s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateOnly), r.SKU, r.Credits, r.Amount, strings.ToUpper(r.Currency))
	}
	return w.Flush()
}

func (a *App) buy(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{usage: a.commands[cmdBuy].usage}
	}

	co, err := a.store.StartCheckout(ctx, args[0], a.cfg.SuccessURL, a.cfg.CancelURL)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.lastSession = co.SessionID
	a.mu.Unlock()

	a.printf("open this page to pay:\n  %s\nthen run: confirm %s\n", co.URL, co.SessionID)
	return nil
}

func (a *App) confirm(ctx context.Context, args []string) error {
	a.mu.Lock()
	id := a.lastSession
	a.mu.Unlock()
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		return usageError{usage: a.commands[cmdConfirm].usage}
	}

	policy := visionsdk.DefaultRetryPolicy()
	policy.OnRetry = func(c visionsdk.Confirmation, wait time.Duration) {
		a.printf("not paid yet (attempt %d); checking again in %s\n", c.Attempts, wait.Round(100*time.Millisecond))
	}

	c := a.store.ConfirmCheckout(ctx, id, policy)
	if c.State != visionsdk.ConfirmConfirmed {
		return c.Err
	}

	a.mu.Lock()
	if a.lastSession == id {
		a.lastSession = ""
	}
	a.mu.Unlock()

	a.printf("payment confirmed; %d credits\n", a.store.CachedCredits())
	if !a.store.ShowAds() {
		a.printf("ad-free is active\n")
	}
	return nil
}

func (a *App) cancelAdFree(ctx context.Context, _ []string) error {
	if _, err := a.store.CancelAdFree(ctx); err != nil {
		return err
	}
	a.printf("ad-free subscription canceled\n")
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	a.store.Logout(ctx)
	a.printf("logged out\n")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
