package studio_test

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImageName = "minivisionary-studio-test:latest"

	webhookSecret = "whsec_e2e"
	userPassword  = "correct horse battery"
	successURL    = "http://app.test/checkout/success"
	cancelURL     = "http://app.test/checkout/cancel"
)

// TestMain builds the image once for the whole suite and removes it after.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Studio Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Studio Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/studio/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run()
}

func baseEnv() map[string]string {
	return map[string]string{
		"STUDIO_ISSUER":         "minivisionary-e2e",
		"STUDIO_NUM_KEYS":       "1",
		"STUDIO_WEBHOOK_SECRET": webhookSecret,
		"STUDIO_PUBLIC_URL":     "http://localhost:8080",
		"SIMULATOR_ENABLED":     "true",
		"ENV":                   "test",
		"LOG_LEVEL":             "info",
		"LOG_FORMAT":            "json",
	}
}

// setupStudioContainer starts the studio with relaxed rate limits so tests
// can sign up and log in freely.
func setupStudioContainer(t *testing.T) string {
	t.Helper()

	env := baseEnv()
	maps.Copy(env, map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	})
	return startContainer(t, env)
}

// setupStudioContainerWithDefaultRateLimits keeps the production limits.
func setupStudioContainerWithDefaultRateLimits(t *testing.T) string {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// newSignedUpStore returns a session store logged in as a fresh account.
func newSignedUpStore(t *testing.T, baseURL, email string) *visionsdk.Store {
	t.Helper()

	st := visionsdk.NewStore(visionsdk.NewClient(baseURL))
	sess, err := st.Signup(t.Context(), visionsdk.SignupRequest{Email: email, Password: userPassword})
	require.NoError(t, err, "signup should succeed")
	require.NotEmpty(t, sess.Token)
	return st
}

// reachable rewrites a URL minted with the container's public URL so it
// points at the mapped port instead.
func reachable(t *testing.T, baseURL, minted string) string {
	t.Helper()

	u, err := url.Parse(minted)
	require.NoError(t, err)
	base, err := url.Parse(baseURL)
	require.NoError(t, err)

	u.Scheme, u.Host = base.Scheme, base.Host
	return u.String()
}

var noFollow = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
}

func fastPolicy() visionsdk.RetryPolicy {
	return visionsdk.RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     500 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
		MaxAttempts:     6,
	}
}

func assertHealthy(t *testing.T, health *visionsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
