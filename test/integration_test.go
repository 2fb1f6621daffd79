// ABOUTME: Integration tests for tracker CLI.
// ABOUTME: Tests full workflow from CLI commands, locally and over the http backend.
package test

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const catalog = `trackers:
  - id: water
    name: Water
    resource_type: Observation
    public: false
    units:
      - unit: glass
        display: glasses
        default: true
        target: 8
ontologies:
  water:
    - system: http://example.com/drinks
      code: drinks
      display: Drinks
      specialized_by:
        - {system: http://example.com/drinks, code: tea, display: Tea}
`

func buildTracker(t *testing.T) string {
	t.Helper()

	projectRoot, _ := filepath.Abs("..")
	binary := filepath.Join(t.TempDir(), "tracker")

	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/tracker")
	buildCmd.Dir = projectRoot
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build: %v\n%s", err, output)
	}
	return binary
}

// isolatedEnv returns an environment whose config and data live in temp dirs.
func isolatedEnv(t *testing.T, extra ...string) []string {
	t.Helper()

	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "TRACKER_") || strings.HasPrefix(kv, "XDG_") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env,
		"XDG_CONFIG_HOME="+t.TempDir(),
		"XDG_DATA_HOME="+t.TempDir(),
	)
	return append(env, extra...)
}

func TestFullWorkflow(t *testing.T) {
	binary := buildTracker(t)
	env := isolatedEnv(t)

	run := func(args ...string) (string, error) {
		cmd := exec.Command(binary, args...)
		cmd.Env = env
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(catalog), 0600); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}

	output, err := run("catalog", "import", catalogPath)
	if err != nil {
		t.Fatalf("Failed to import catalog: %v\n%s", err, output)
	}

	output, err = run("install", "water", "--target", "6")
	if err != nil {
		t.Fatalf("Failed to install water: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Installed Water") {
		t.Errorf("Expected 'Installed Water' in output, got: %s", output)
	}

	output, err = run("add", "water", "-c", "tea")
	if err != nil {
		t.Fatalf("Failed to add water: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Added Water") {
		t.Errorf("Expected 'Added Water' in output, got: %s", output)
	}

	output, err = run("set", "water", "4")
	if err != nil {
		t.Fatalf("Failed to set total: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Water: 4") {
		t.Errorf("Expected 'Water: 4' in output, got: %s", output)
	}

	output, err = run("values", "water")
	if err != nil {
		t.Fatalf("Failed to list values: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Water") {
		t.Errorf("Expected 'Water' in values output, got: %s", output)
	}

	output, err = run("export", "markdown", "--tracker", "water")
	if err != nil {
		t.Fatalf("Failed to export: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Water") {
		t.Errorf("Expected 'Water' in export, got: %s", output)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestHTTPBackendWorkflow(t *testing.T) {
	binary := buildTracker(t)
	serverEnv := isolatedEnv(t)

	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(catalog), 0600); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	importCmd := exec.Command(binary, "catalog", "import", catalogPath)
	importCmd.Env = serverEnv
	if output, err := importCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to import catalog: %v\n%s", err, output)
	}

	addr := freeAddr(t)
	serveCmd := exec.Command(binary, "serve", "--addr", addr, "--token", "secret")
	serveCmd.Env = serverEnv
	if err := serveCmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		_ = serveCmd.Process.Signal(os.Interrupt)
		_ = serveCmd.Wait()
	})

	baseURL := fmt.Sprintf("http://%s", addr)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusNoContent {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("Server did not become healthy: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	clientEnv := isolatedEnv(t, "TRACKER_API_URL="+baseURL, "TRACKER_TOKEN=secret")
	run := func(args ...string) (string, error) {
		cmd := exec.Command(binary, args...)
		cmd.Env = clientEnv
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	output, err := run("install", "water")
	if err != nil {
		t.Fatalf("Failed to install over http: %v\n%s", err, output)
	}

	output, err = run("add", "water", "2")
	if err != nil {
		t.Fatalf("Failed to add over http: %v\n%s", err, output)
	}

	output, err = run("set", "water", "--relative", "1")
	if err != nil {
		t.Fatalf("Failed to set over http: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Water: 3") {
		t.Errorf("Expected 'Water: 3' in output, got: %s", output)
	}

	// Local-only commands refuse the http backend.
	if output, err := run("export", "json"); err == nil {
		t.Errorf("Expected export to fail over http, got: %s", output)
	}

	// A wrong token is rejected.
	bad := exec.Command(binary, "trackers")
	bad.Env = isolatedEnv(t, "TRACKER_API_URL="+baseURL, "TRACKER_TOKEN=wrong", "TRACKER_ENV=development")
	if output, err := bad.CombinedOutput(); err == nil {
		t.Errorf("Expected wrong token to fail, got: %s", output)
	}
}
