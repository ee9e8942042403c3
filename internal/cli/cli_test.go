package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/app"
	"github.com/aussiebroadwan/minivisionary/internal/studio/payments"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
)

const password = "correct horse"

func TestMain(m *testing.M) {
	// Tests feed passwords through the input reader.
	isTerminal = func(int) bool { return false }
	os.Exit(m.Run())
}

// startStudio serves a real backend with the payment simulator enabled.
func startStudio(t *testing.T) string {
	t.Helper()

	srv := httptest.NewUnstartedServer(nil)
	dir := t.TempDir()
	a, err := app.New(app.Config{
		Issuer:               "http://studio.test",
		TokenTTL:             time.Hour,
		NumKeys:              1,
		DatabaseFile:         filepath.Join(dir, "studio.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		UploadDir:            filepath.Join(dir, "uploads"),
		PublicURL:            "http://" + srv.Listener.Addr().String(),
		WebhookSecret:        "whsec_cli",
		SignatureTolerance:   payments.DefaultSignatureTolerance,
		CheckoutTTL:          time.Hour,
		SimulatorEnabled:     true,
		GenerateTimeout:      10 * time.Second,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
		RateLimits:           httpx.DefaultRateLimits(),
	}, app.WithLogOutput(io.Discard))
	require.NoError(t, err)

	srv.Config.Handler = a.Handler()
	srv.Start()
	t.Cleanup(func() {
		srv.Close()
		_ = a.Shutdown()
	})
	return srv.URL
}

func testCLIConfig(t *testing.T, baseURL string) Config {
	t.Helper()
	return Config{
		APIURL:     baseURL,
		TokenFile:  filepath.Join(t.TempDir(), "visionctl", "token"),
		Timeout:    10 * time.Second,
		SuccessURL: "http://app.test/checkout/success",
		CancelURL:  "http://app.test/checkout/cancel",
	}
}

func newTestApp(t *testing.T, cfg Config, input string) (*App, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	a, err := NewApp(cfg, strings.NewReader(input), out)
	require.NoError(t, err)
	return a, out
}

func TestGateBlocksCommands(t *testing.T) {
	ctx := context.Background()
	cfg := testCLIConfig(t, "http://127.0.0.1:1")

	a, _ := newTestApp(t, cfg, "")
	err := a.Execute(ctx, []string{"wallet"})
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, "login", blocked.Redirect)

	err = a.Execute(ctx, []string{"teleport"})
	require.ErrorContains(t, err, `unknown command "teleport"`)

	// A saved token counts as signed in, so login is refused without asking
	// the server anything.
	require.NoError(t, TokenFile{Path: cfg.TokenFile}.Save("saved-token"))
	a, _ = newTestApp(t, cfg, "")
	err = a.Execute(ctx, []string{"signup", "ada@example.com"})
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, "me", blocked.Redirect)
}

func TestSessionFlow(t *testing.T) {
	ctx := context.Background()
	baseURL := startStudio(t)
	cfg := testCLIConfig(t, baseURL)

	a, out := newTestApp(t, cfg, password+"\n"+password+"\n")
	require.NoError(t, a.Execute(ctx, []string{"signup", "ada@example.com", "Ada", "Lovelace"}))
	require.Contains(t, out.String(), "logged in as ada@example.com (20 credits)")

	info, err := os.Stat(cfg.TokenFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"credits"}))
	require.Equal(t, "20 credits\n", out.String())

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"generate", "-size", "512x512", "a", "lighthouse"}))
	require.Contains(t, out.String(), "poster ready: "+baseURL+"/uploads/")
	require.Contains(t, out.String(), "10 credits left")

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"library"}))
	require.Contains(t, out.String(), "a lighthouse")
	require.Contains(t, out.String(), "512x512")

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"buy", "starter"}))
	require.NotEmpty(t, a.lastSession)
	require.Contains(t, out.String(), "confirm "+a.lastSession)

	// Paying happens in the browser; the simulator stands in for it.
	noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := noFollow.Get(baseURL + "/payments/simulate/" + a.lastSession)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"confirm"}))
	require.Contains(t, out.String(), "payment confirmed; 70 credits")
	require.Empty(t, a.lastSession)

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"wallet"}))
	require.Contains(t, out.String(), "70 credits")
	require.Contains(t, out.String(), "starter")

	// A second run picks the session up from the token file.
	b, bout := newTestApp(t, cfg, "")
	require.NoError(t, b.Execute(ctx, []string{"me"}))
	require.Contains(t, bout.String(), "ada@example.com")
	require.Contains(t, bout.String(), "Ada Lovelace")

	require.NoError(t, b.Execute(ctx, []string{"logout"}))
	_, err = os.Stat(cfg.TokenFile)
	require.ErrorIs(t, err, os.ErrNotExist)

	var blocked *BlockedError
	require.ErrorAs(t, b.Execute(ctx, []string{"me"}), &blocked)
}

func TestRejectedTokenIsForgotten(t *testing.T) {
	ctx := context.Background()
	baseURL := startStudio(t)
	cfg := testCLIConfig(t, baseURL)

	a, _ := newTestApp(t, cfg, password+"\n"+password+"\n")
	require.NoError(t, a.Execute(ctx, []string{"signup", "grace@example.com"}))

	// The token is revoked elsewhere.
	token, err := TokenFile{Path: cfg.TokenFile}.Load()
	require.NoError(t, err)
	require.NoError(t, visionsdk.NewClient(baseURL).Logout(ctx, token))

	b, _ := newTestApp(t, cfg, "")
	err = b.Execute(ctx, []string{"credits"})
	require.ErrorIs(t, err, visionsdk.ErrUnauthenticated)
	require.Equal(t, "your session has ended; please log in again", Describe(err))

	_, err = os.Stat(cfg.TokenFile)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoginPromptsAndRejectsBadPassword(t *testing.T) {
	ctx := context.Background()
	baseURL := startStudio(t)
	cfg := testCLIConfig(t, baseURL)

	_, err := visionsdk.NewClient(baseURL).Signup(ctx, visionsdk.SignupRequest{Email: "linus@example.com", Password: password})
	require.NoError(t, err)

	a, _ := newTestApp(t, cfg, "linus@example.com\nnot the password\n")
	err = a.Execute(ctx, []string{"login"})
	require.ErrorIs(t, err, visionsdk.ErrInvalidCredentials)

	_, err = os.Stat(cfg.TokenFile)
	require.ErrorIs(t, err, os.ErrNotExist)

	a, out := newTestApp(t, cfg, password+"\n")
	require.NoError(t, a.Execute(ctx, []string{"login", "linus@example.com"}))
	require.Contains(t, out.String(), "logged in as linus@example.com")
}

func TestInsufficientCreditsIsReportedLocally(t *testing.T) {
	ctx := context.Background()
	baseURL := startStudio(t)
	cfg := testCLIConfig(t, baseURL)

	a, out := newTestApp(t, cfg, password+"\n"+password+"\n")
	require.NoError(t, a.Execute(ctx, []string{"signup", "hopper@example.com"}))
	require.NoError(t, a.Execute(ctx, []string{"generate", "one"}))
	require.NoError(t, a.Execute(ctx, []string{"generate", "two"}))

	err := a.Execute(ctx, []string{"generate", "three"})
	require.ErrorIs(t, err, visionsdk.ErrInsufficientCredits)

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"credits"}))
	require.Equal(t, "0 credits\n", out.String())

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"cancel-generate"}))
	require.Equal(t, "no generation in progress\n", out.String())

	var usage usageError
	require.ErrorAs(t, a.Execute(ctx, []string{"generate"}), &usage)
	require.ErrorAs(t, a.Execute(ctx, []string{"library", "zero"}), &usage)
}

func TestREPL(t *testing.T) {
	baseURL := startStudio(t)
	cfg := testCLIConfig(t, baseURL)

	input := strings.Join([]string{
		"help",
		"",
		"products",
		"bogus",
		"me",
		"exit",
		"products",
	}, "\n")
	a, out := newTestApp(t, cfg, input)
	require.NoError(t, a.RunREPL(context.Background()))

	got := out.String()
	require.Contains(t, got, "signup [email] [display name]")
	require.NotContains(t, got, "cancel-adfree")
	require.Contains(t, got, "starter")
	require.Contains(t, got, "adfree")
	require.Contains(t, got, `error: unknown command "bogus" (try help)`)
	require.Contains(t, got, "error: me needs a session; run login first")
	require.True(t, strings.HasSuffix(got, "Bye!\n"))
	require.Equal(t, 1, strings.Count(got, "SKU"))
}

func TestREPLStopsAtEOF(t *testing.T) {
	cfg := testCLIConfig(t, "http://127.0.0.1:1")
	a, out := newTestApp(t, cfg, "help")
	require.NoError(t, a.RunREPL(context.Background()))
	require.Contains(t, out.String(), "login [email]")
}

func TestTokenFile(t *testing.T) {
	f := TokenFile{Path: filepath.Join(t.TempDir(), "nested", "token")}

	token, err := f.Load()
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, f.Save("abc.def.ghi"))
	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err = f.Load()
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", token)

	require.NoError(t, f.Remove())
	require.NoError(t, f.Remove())
}

func TestLoadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("VISION_API_URL", "http://env.example:8080")
	t.Setenv("VISION_TOKEN_FILE", "")

	cfg, rest, err := LoadConfig([]string{"-timeout", "5s", "generate", "a", "cat"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "http://env.example:8080", cfg.APIURL)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, filepath.Join(home, ".config", "visionctl", "token"), cfg.TokenFile)
	require.Equal(t, []string{"generate", "a", "cat"}, rest)

	cfg, _, err = LoadConfig([]string{"-api", "http://flag.example", "-token-file", "/tmp/tok"}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "http://flag.example", cfg.APIURL)
	require.Equal(t, "/tmp/tok", cfg.TokenFile)

	_, _, err = LoadConfig([]string{"-nope"}, io.Discard)
	require.Error(t, err)
}

func TestPromptPasswordUsesTerminal(t *testing.T) {
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })

	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	var out bytes.Buffer
	pw, err := promptPassword(nil, &out, "Password: ")
	require.NoError(t, err)
	require.Equal(t, "s3cret", pw)
	require.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a tty") }
	_, err = promptPassword(nil, &out, "Password: ")
	require.ErrorContains(t, err, "not a tty")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{visionsdk.ErrInvalidCredentials, "wrong email or password"},
		{visionsdk.NewAPIError(http.StatusPaymentRequired, visionsdk.CodeInsufficientCredits, ""), "not enough credits; see products and buy <sku>"},
		{visionsdk.ErrNetwork, "cannot reach the studio; check VISION_API_URL"},
		{visionsdk.ErrActionPending, "that is already in progress"},
		{visionsdk.NewAPIError(http.StatusBadRequest, visionsdk.CodeInvalidSKU, "unknown sku"), "unknown sku"},
		{&BlockedError{Command: "wallet", Redirect: "login"}, "wallet needs a session; run login first"},
		{usageError{usage: "buy <sku>"}, "usage: buy <sku>"},
		{errors.New("plain"), "plain"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, Describe(tt.err))
	}
}
