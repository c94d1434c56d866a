package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binDir holds the park and monitor binaries built by `go build -o bin/ ./cmd/...`.
func binDir() string {
	if dir := os.Getenv("PARK_BIN_DIR"); dir != "" {
		return dir
	}
	return filepath.Join("..", "..", "bin")
}

func requireBinaries(t *testing.T) (park, monitor string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	park = filepath.Join(binDir(), "park")
	monitor = filepath.Join(binDir(), "monitor")
	for _, bin := range []string{park, monitor} {
		if _, err := os.Stat(bin); os.IsNotExist(err) {
			t.Skipf("Skipping integration test: %s not found (build the binaries into bin/ first)", bin)
		}
	}
	return park, monitor
}

// safeBuffer collects process output written from exec's copy goroutines.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestParkWithSeparateMonitor runs the park with the monitor in its own process.
func TestParkWithSeparateMonitor(t *testing.T) {
	park, monitor := requireBinaries(t)

	var out, errOut safeBuffer
	cmd := exec.Command(park, "-n", "6", "-c", "2", "-p", "2", "-t", "12", "-j", "4", "-unit", "20ms", "-monitor", monitor)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	require.NoError(t, cmd.Run())

	// park logs the monitor's exit error; the monitor logs its own decode errors.
	assert.NotContains(t, errOut.String(), "exit status")
	assert.NotContains(t, errOut.String(), "decode snapshot")

	got := out.String()
	assert.Equal(t, 2, strings.Count(got, "[Monitor] SYSTEM STATE"), "snapshots at times 4 and 9")
	assert.Contains(t, got, "Car status 1 ")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(got), "Total Rides: "+lastField(got)))
	assert.Contains(t, got, "=========== PARK CLOSED ==========")
}

// TestMonitorBinaryExitsCleanly feeds the monitor a stream that ends after a
// newline-terminated frame.
func TestMonitorBinaryExitsCleanly(t *testing.T) {
	_, monitor := requireBinaries(t)

	var out, errOut safeBuffer
	cmd := exec.Command(monitor)
	cmd.Stdin = strings.NewReader("{\"time\":4}\n{\"time\":9}\n")
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	require.NoError(t, cmd.Run(), "stderr: %s", errOut.String())

	assert.Equal(t, 2, strings.Count(out.String(), "[Monitor] SYSTEM STATE"))
	assert.Empty(t, errOut.String())
}

// TestParkStatusServer polls the HTTP status server while the park runs.
func TestParkStatusServer(t *testing.T) {
	park, _ := requireBinaries(t)

	const addr = "127.0.0.1:18090"
	var out safeBuffer
	cmd := exec.Command(park, "-t", "100", "-unit", "20ms", "-monitor", "off")
	cmd.Env = append(os.Environ(), "PARK_LISTEN="+addr)
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	client := &http.Client{Timeout: time.Second}
	base := fmt.Sprintf("http://%s", addr)
	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := client.Get(base + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap struct {
		RunID string `json:"run_id"`
		Cars  []struct {
			Capacity int `json:"capacity"`
		} `json:"cars"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.NotEmpty(t, snap.RunID)
	assert.Len(t, snap.Cars, 2)

	mresp, err := client.Get(base + "/metrics")
	require.NoError(t, err)
	mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

// TestParkInterrupt closes the park early on SIGINT and still prints statistics.
func TestParkInterrupt(t *testing.T) {
	park, _ := requireBinaries(t)

	var out safeBuffer
	cmd := exec.Command(park, "-t", "1000", "-unit", "20ms", "-monitor", "inline")
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start())

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, cmd.Process.Signal(syscall.SIGINT))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("park did not exit after SIGINT")
	}

	assert.Contains(t, out.String(), "=========== PARK CLOSED ==========")
}

func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
