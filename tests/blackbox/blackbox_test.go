package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

const secret = "blackbox-secret"

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, func() { _ = ln.Close() }
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "webhookd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/webhookd")
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
	done chan error
}

func startServer(t *testing.T, bin string, port int) *serverProc {
	t.Helper()
	// Nothing listens on the Jira port, so the startup field lookup fails fast.
	jiraPort, release := findFreePort(t)
	release()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--log-level", "debug")
	cmd.Env = append(os.Environ(),
		"GITLAB_URL=http://127.0.0.1:1",
		fmt.Sprintf("JIRA_URL=http://127.0.0.1:%d", jiraPort),
		"GITLAB_WEBHOOK_SECRET_TOKEN="+secret,
		"WEBHOOKD_CONFIG=",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	sp := &serverProc{cmd: cmd, base: base, done: make(chan error, 1)}
	go func() { sp.done <- cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	// Wait for healthz
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postHook(t *testing.T, url, token, event string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gitlab-Event", event)
	if token != "" {
		req.Header.Set("X-Gitlab-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

type status struct {
	State      string   `json:"state"`
	QueueDepth int      `json:"queue_depth"`
	Processed  uint64   `json:"processed"`
	Handlers   []string `json:"handlers"`
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	// Reserve a free port, then release listener before starting the server
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, port)

	resp, body := get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	hook := []byte(`{"object_kind":"pipeline","project":{"id":1,"path_with_namespace":"group/app"},"object_attributes":{"status":"success"}}`)
	resp, body = postHook(t, sp.base+"/webhook", secret, "Pipeline Hook", hook)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("/webhook %d %s", resp.StatusCode, string(body))
	}
	if resp.Header.Get("X-Event-Id") == "" {
		t.Fatalf("expected X-Event-Id header")
	}

	resp, body = postHook(t, sp.base+"/", "wrong", "Pipeline Hook", hook)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong token: expected 403, got %d %s", resp.StatusCode, string(body))
	}

	resp, body = postHook(t, sp.base+"/", secret, "Pipeline Hook", []byte(`{not json`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d %s", resp.StatusCode, string(body))
	}

	// the accepted hook is eventually processed
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, body = get(t, sp.base+"/status")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("/status %d %s", resp.StatusCode, string(body))
		}
		if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
			t.Fatalf("/status content-type=%s", ct)
		}
		var st status
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("/status json: %v body=%s", err, string(body))
		}
		if st.State != "running" {
			t.Fatalf("expected running, got %q", st.State)
		}
		if st.Processed >= 1 && st.QueueDepth == 0 {
			if len(st.Handlers) != 3 {
				t.Fatalf("expected 3 handlers, got %v", st.Handlers)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event not processed in time; last=%s", string(body))
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, body = get(t, sp.base+"/metrics")
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("webhookd_webhooks_total")) {
		t.Fatalf("/metrics %d missing webhook counter", resp.StatusCode)
	}
}

func TestBlackbox_GracefulShutdown(t *testing.T) {
	bin := buildBinary(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, port)

	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	select {
	case err := <-sp.done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not exit after SIGTERM")
	}
}
