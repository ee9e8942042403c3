package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

// Command names double as gate views.
const (
	cmdHealth         = "health"
	cmdProducts       = "products"
	cmdHelp           = "help"
	cmdLogin          = "login"
	cmdSignup         = "signup"
	cmdMe             = "me"
	cmdCredits        = "credits"
	cmdGenerate       = "generate"
	cmdCancelGenerate = "cancel-generate"
	cmdLibrary        = "library"
	cmdWallet         = "wallet"
	cmdBuy            = "buy"
	cmdConfirm        = "confirm"
	cmdCancelAdFree   = "cancel-adfree"
	cmdLogout         = "logout"
)

type command struct {
	access  visionsdk.Access
	usage   string
	summary string
	run     func(ctx context.Context, args []string) error
}

// App is the visionctl client. Every screen-like command reads and writes
// session state through one visionsdk.Store.
type App struct {
	cfg    Config
	store  *visionsdk.Store
	gate   *visionsdk.Gate
	tokens TokenFile
	in     *bufio.Reader
	out    io.Writer
	log    *slog.Logger

	commands map[string]command
	order    []string

	// async runs generations in the background so the REPL stays usable.
	async      bool
	background sync.WaitGroup

	mu          sync.Mutex
	lastSession string
}

// NewApp builds the client and resumes a saved session, if any.
func NewApp(cfg Config, in io.Reader, out io.Writer) (*App, error) {
	logger := slogx.Discard()
	if cfg.Verbose {
		logger = slogx.New(slogx.Config{
			Service: "visionctl",
			Level:   "debug",
			Format:  "text",
			Output:  os.Stderr,
		})
	}

	client := visionsdk.NewClient(cfg.APIURL)
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	a := &App{
		cfg:    cfg,
		store:  visionsdk.NewStore(client, visionsdk.WithLogger(logger)),
		tokens: TokenFile{Path: cfg.TokenFile},
		in:     bufio.NewReader(in),
		out:    &syncWriter{w: out},
		log:    logger,
	}
	a.registerCommands()

	token, err := a.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token != "" {
		a.store.Resume(token)
	}

	// Logout and rejected tokens both end here.
	a.store.OnTeardown(func() {
		if err := a.tokens.Remove(); err != nil {
			a.log.Warn("failed to remove saved token", "error", err)
		}
	})

	return a, nil
}

func (a *App) registerCommands() {
	a.commands = make(map[string]command)
	a.gate = visionsdk.NewGate(visionsdk.AccessProtected).Redirects(cmdLogin, cmdMe)

	add := func(name string, access visionsdk.Access, usage, summary string, run func(context.Context, []string) error) {
		a.commands[name] = command{access: access, usage: usage, summary: summary, run: run}
		a.order = append(a.order, name)
		a.gate.Register(access, name)
	}

	add(cmdHelp, visionsdk.AccessPublic, "help", "list the commands available now", a.help)
	add(cmdHealth, visionsdk.AccessPublic, "health", "check the studio is up", a.health)
	add(cmdProducts, visionsdk.AccessPublic, "products", "list credit packs and subscriptions", a.products)

	add(cmdLogin, visionsdk.AccessAuthOnly, "login [email]", "log in", a.login)
	add(cmdSignup, visionsdk.AccessAuthOnly, "signup [email] [display name]", "create an account", a.signup)

	add(cmdMe, visionsdk.AccessProtected, "me", "show your profile", a.me)
	add(cmdCredits, visionsdk.AccessProtected, "credits", "show your balance", a.credits)
	add(cmdGenerate, visionsdk.AccessProtected, "generate [-size WxH] [-style S] <prompt>", "render a poster", a.generate)
	add(cmdCancelGenerate, visionsdk.AccessProtected, "cancel-generate", "stop the running generation", a.cancelGenerate)
	add(cmdLibrary, visionsdk.AccessProtected, "library [limit]", "list your posters", a.library)
	add(cmdWallet, visionsdk.AccessProtected, "wallet", "show balance and recent receipts", a.wallet)
	add(cmdBuy, visionsdk.AccessProtected, "buy <sku>", "start a checkout", a.buy)
	add(cmdConfirm, visionsdk.AccessProtected, "confirm [session id]", "confirm a checkout was paid", a.confirm)
	add(cmdCancelAdFree, visionsdk.AccessProtected, "cancel-adfree", "end the ad-free subscription", a.cancelAdFree)
	add(cmdLogout, visionsdk.AccessProtected, "logout", "end the session", a.logout)
}

// Execute runs one command line after checking the gate.
func (a *App) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError{usage: "visionctl <command> [args]"}
	}

	name := args[0]
	cmd, ok := a.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", name)
	}

	if d := a.gate.Check(name, a.store.Authenticated()); !d.Allowed {
		return &BlockedError{Command: name, Redirect: d.Redirect}
	}

	// A resumed token has no profile yet; fetching it also finds out
	// whether the server still accepts the token.
	if cmd.access == visionsdk.AccessProtected && name != cmdLogout {
		if _, known := a.store.Profile(); !known {
			if _, err := a.store.RefreshProfile(ctx); err != nil && !a.store.Authenticated() {
				return err
			}
		}
	}

	a.log.Debug("running command", "command", name, "args", len(args)-1)
	return cmd.run(ctx, args[1:])
}

// Run executes a single command and waits for any background work.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.Close()
	return a.Execute(ctx, args)
}

// Close waits for background generations to finish.
func (a *App) Close() {
	a.background.Wait()
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// syncWriter serializes output from the REPL and background generations.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
