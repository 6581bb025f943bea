package idp_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for identity provider end-to-end
 * tests. This includes container setup, seeded registry fixtures, and
 * assertions.
 */

const (
	testImageName = "idp-test:latest"

	testIssuer = "http://localhost:8080"

	// Confidential client seeded from testdata/registry.yaml
	webClientID     = "web.dashboard"
	webClientSecret = "dashboard-secret-0123456789"
	webRedirectURI  = "http://localhost/callback"

	// Public client (no secret, PKCE required)
	spaClientID    = "spa.public"
	spaRedirectURI = "http://localhost/spa/callback"

	// Machine-to-machine client
	reportingClientID     = "svc.reporting"
	reportingClientSecret = "reporting-secret-0123456789"

	// Seeded resource owners
	aliceUsername  = "alice"
	alicePassword  = "CorrectHorse1!"
	aliceName      = "Alice Example"
	aliceSubjectID = "01J0000000000000000000ALCE"

	bobUsername = "bob"
	bobPassword = "Hunter2Hunter2!"
)

var (
	fullScopes = []string{"openid", "profile", "user", "users:read"}
)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Identity Provider Docker image...")

	// Build the Docker image once before all tests
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	// Run all tests
	exitCode := m.Run()

	// Clean up the Docker image after all tests complete
	fmt.Fprintf(os.Stdout, "Cleaning up Identity Provider Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image if it doesn't exist.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/idp/Dockerfile",
		"../../../")
	cmd.Dir = "." // Ensure we're in the test directory
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// baseContainerEnv returns the environment shared by all test containers.
// The registry file is copied into the container before startup (see
// setupIDPContainer) and migrations plus seeding run before the listener.
func baseContainerEnv() map[string]string {
	return map[string]string{
		"IDP_ISSUER":           testIssuer,
		"IDP_DATABASE_FILE":    "/tmp/idp.db",
		"IDP_PEPPER_FILE":      "/tmp/pepper",
		"IDP_REGISTRY_FILE":    "/tmp/registry.yaml",
		"IDP_APPLY_MIGRATIONS": "true",
		"IDP_SEED_DATA":        "true",
		"IDP_ALGORITHM":        "EdDSA",
		"IDP_NUM_KEYS":         "1", // Start with 1 key for simpler testing
		"ENV":                  "test",
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "json",
	}
}

// setupIDPContainer starts the identity provider in a container and returns
// the base URL. Rate limits are relaxed because tests make many rapid
// requests which would otherwise hit the strict production limits.
func setupIDPContainer(t *testing.T) (string, func()) {
	t.Helper()

	env := baseContainerEnv()
	env["RATELIMIT_STRICT_REQUESTS"] = "1000"
	env["RATELIMIT_STRICT_WINDOW_SEC"] = "60"
	env["RATELIMIT_STRICT_BURST"] = "1000"
	env["RATELIMIT_MODERATE_REQUESTS"] = "1000"
	env["RATELIMIT_MODERATE_BURST"] = "1000"
	env["RATELIMIT_LENIENT_REQUESTS"] = "1000"
	env["RATELIMIT_LENIENT_BURST"] = "1000"

	return startContainer(t, env)
}

// setupIDPContainerWithDefaultRateLimits starts the identity provider with
// DEFAULT rate limits. This is specifically for testing that rate limiting
// actually works. Most tests should use setupIDPContainer() instead.
func setupIDPContainerWithDefaultRateLimits(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, baseContainerEnv())
}

func startContainer(t *testing.T, env map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      "testdata/registry.yaml",
				ContainerFilePath: "/tmp/registry.yaml",
				FileMode:          0o644,
			},
		},
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	// Get the mapped port
	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *idpsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn, "Token lifetime should be positive")
}

// assertOAuth2Error verifies an error is an OAuth2 error with the expected code.
func assertOAuth2Error(t *testing.T, err error, code string, context string) {
	t.Helper()
	require.Error(t, err, context)

	var oauthErr *idpsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr, "%s - expected an OAuth2 error, got: %v", context, err)
	require.Equal(t, code, oauthErr.Code, "%s - unexpected error code", context)
}

// assertUnauthorized checks that an error indicates unauthorized access.
func assertUnauthorized(t *testing.T, err error, context string) {
	t.Helper()
	require.Error(t, err, context)
	errMsg := err.Error()
	hasUnauthorized := strings.Contains(errMsg, "401") ||
		strings.Contains(errMsg, "invalid_grant") ||
		strings.Contains(errMsg, "invalid_client") ||
		strings.Contains(errMsg, "invalid_token")
	require.True(t, hasUnauthorized, "%s - error should indicate unauthorized access, got: %s", context, errMsg)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *idpsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}

// passwordToken authenticates alice via the password grant with the full
// scope set and returns the token response.
func passwordToken(t *testing.T, client *idpsdk.SDKClient) *idpsdk.TokenResponse {
	t.Helper()

	token, err := client.PasswordGrant(t.Context(),
		webClientID, webClientSecret, aliceUsername, alicePassword, fullScopes)
	require.NoError(t, err, "Password grant should succeed")
	assertTokenResponse(t, token)

	return token
}
