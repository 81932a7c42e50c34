package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fakeDaemonAPI(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func TestBudgetCommandRendersTable(t *testing.T) {
	addr := fakeDaemonAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/budget" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"remaining":12,"cap":40,"reset_at":"2026-08-29T21:00:00Z"}`))
	})

	out, err := runCommand(t, "budget", "--api", addr)
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if !strings.Contains(out, "12") || !strings.Contains(out, "40") {
		t.Errorf("budget table missing values:\n%s", out)
	}
}

func TestBudgetCommandJSON(t *testing.T) {
	addr := fakeDaemonAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"remaining":0,"cap":40,"reset_at":"2026-08-29T21:00:00Z"}`))
	})

	out, err := runCommand(t, "budget", "--api", addr, "--json")
	if err != nil {
		t.Fatalf("budget --json: %v", err)
	}
	var view budgetView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if view.Remaining != 0 || view.Cap != 40 {
		t.Errorf("view = %+v", view)
	}
}

func TestHistoryUnknownArtist(t *testing.T) {
	addr := fakeDaemonAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := runCommand(t, "history", "Unknown Artist", "--api", addr)
	if err == nil || !strings.Contains(err.Error(), "no history recorded") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestPrefetchListEmpty(t *testing.T) {
	addr := fakeDaemonAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobs":[]}`))
	})

	out, err := runCommand(t, "prefetch", "list", "--api", addr)
	if err != nil {
		t.Fatalf("prefetch list: %v", err)
	}
	if !strings.Contains(out, "Warm queue is empty") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output missing target path: %q", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[giphy]") {
		t.Errorf("sample config missing giphy section:\n%s", data)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Error("expected error when target already exists")
	}
}
