package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func site() *httptest.Server {
	pages := map[string]string{
		"/":      `<html><head><title>Home</title></head><body><a href="/about">About</a> <a href="mailto:x@example.com">Mail</a> <a href="/x" hn-ignore>X</a><form action="/f"></form></body></html>`,
		"/about": `<html><head><title>About</title></head><body><a href="#" hn-back>Back</a></body></html>`,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
}

func TestSplitConfig(t *testing.T) {
	tests := []struct {
		args []string
		path string
		rest []string
		err  bool
	}{
		{[]string{"http://a", "/b"}, "", []string{"http://a", "/b"}, false},
		{[]string{"--config", "c.yaml", "http://a"}, "c.yaml", []string{"http://a"}, false},
		{[]string{"http://a", "--config=c.json"}, "c.json", []string{"http://a"}, false},
		{[]string{"http://a", "--config"}, "", nil, true},
	}
	for _, tt := range tests {
		path, rest, err := splitConfig(tt.args)
		if (err != nil) != tt.err {
			t.Errorf("splitConfig(%v) error = %v, want error %v", tt.args, err, tt.err)
			continue
		}
		if path != tt.path || strings.Join(rest, " ") != strings.Join(tt.rest, " ") {
			t.Errorf("splitConfig(%v) = %q, %v, want %q, %v", tt.args, path, rest, tt.path, tt.rest)
		}
	}
}

func TestRunWalk(t *testing.T) {
	srv := site()
	defer srv.Close()

	var out bytes.Buffer
	err := runWalk(context.Background(), []string{srv.URL + "/", "/about", "back"}, &out)
	if err != nil {
		t.Fatalf("runWalk() error = %v\n%s", err, out.String())
	}
	got := out.String()
	for _, want := range []string{`"About"`, "completed", "history   " + srv.URL + "/\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("runWalk() output missing %q:\n%s", want, got)
		}
	}
}

func TestRunWalkReportsFailures(t *testing.T) {
	srv := site()
	defer srv.Close()

	var out bytes.Buffer
	err := runWalk(context.Background(), []string{srv.URL + "/", "/missing"}, &out)
	if err == nil {
		t.Fatal("runWalk() error = nil, want failed step")
	}
	if !strings.Contains(out.String(), "aborted") {
		t.Errorf("runWalk() output missing aborted step:\n%s", out.String())
	}
}

func TestRunLinks(t *testing.T) {
	srv := site()
	defer srv.Close()

	var out bytes.Buffer
	if err := runLinks(context.Background(), []string{srv.URL + "/"}, &out); err != nil {
		t.Fatalf("runLinks() error = %v", err)
	}
	if !strings.Contains(out.String(), "1 navigable, 0 back, 1 ignored, 1 rejected, 1 forms") {
		t.Errorf("runLinks() summary wrong:\n%s", out.String())
	}
}

func TestRunConfig(t *testing.T) {
	var out bytes.Buffer
	if err := runConfig(nil, &out); err != nil {
		t.Fatalf("runConfig() error = %v", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(out.Bytes(), &cfg); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if cfg["Mount"] != "body" {
		t.Errorf("Mount = %v, want body", cfg["Mount"])
	}
}
