package app_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/spellbook/internal/app"
	"github.com/MrWong99/spellbook/internal/config"
	"github.com/MrWong99/spellbook/internal/dictionary"
	"github.com/MrWong99/spellbook/internal/observe"
)

// testConfig returns a defaulted config reading the given word list.
func testConfig(t *testing.T, words string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dictionary.txt")
	if err := os.WriteFile(path, []byte(words), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Server:     config.ServerConfig{AdminAddr: "-"},
		Dictionary: config.DictionaryConfig{Path: path},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func testOptions(t *testing.T) []app.Option {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return []app.Option{app.WithMetrics(m), app.WithGatherer(prometheus.NewRegistry())}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	return ln
}

func TestNew_LoadsDictionary(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t, "cat\nhat\ncat\n"), testOptions(t)...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	if got := a.Dictionary().Len(); got != 2 {
		t.Errorf("dictionary size = %d, want 2", got)
	}
}

func TestNew_MissingDictionaryIsFatal(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	cfg.Dictionary.Path = filepath.Join(t.TempDir(), "missing.txt")

	if _, err := app.New(context.Background(), cfg, testOptions(t)...); err == nil {
		t.Fatal("New() succeeded with a missing dictionary file")
	}
}

func TestRun_ServesSessionsAndAdmin(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "cat\n")
	tcpLn, adminLn := listen(t), listen(t)
	opts := append(testOptions(t), app.WithListener(tcpLn), app.WithAdminListener(adminLn))

	a, err := app.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	adminURL := "http://" + adminLn.Addr().String()
	waitReady(t, adminURL+"/readyz")

	// One session that adds a word.
	nc, err := net.DialTimeout("tcp", tcpLn.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = nc.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(nc, "xyz\ny\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	all, err := io.ReadAll(bufio.NewReader(nc))
	_ = nc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(string(all), "INPUT: xyz\nOUTPUT: xyz\n") {
		t.Errorf("session output = %q", all)
	}
	if !a.Dictionary().Lookup("xyz") {
		t.Error("accepted word not in dictionary")
	}

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(adminURL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}

	sctx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer scancel()
	if err := a.Shutdown(sctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if err := a.Dictionary().Ping(context.Background()); !errors.Is(err, dictionary.ErrClosed) {
		t.Errorf("Ping after Shutdown = %v, want ErrClosed", err)
	}

	data, err := os.ReadFile(cfg.Dictionary.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cat\nxyz\n" {
		t.Errorf("dictionary file = %q, want %q", data, "cat\nxyz\n")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t, "cat\n"), testOptions(t)...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	for range 2 {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown() = %v", err)
		}
	}
}

// waitReady polls url until it answers 200 or the test times out.
func waitReady(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s not ready within 5s", url)
}
