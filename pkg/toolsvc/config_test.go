package toolsvc

import (
	"testing"
	"time"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"Files":            "files",
		"  My Service  ":   "my-service",
		"a@@b":             "a-b",
		"dev_tools":        "dev_tools",
		"already-fine":     "already-fine",
		"!!leading":        "leading",
		"trailing!!":       "trailing",
		"Sp ace   Runs":    "sp-ace-runs",
		"":                 "",
		"###":              "",
		"MiXeD-Case_123":   "mixed-case_123",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Errorf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceConfigTimeout(t *testing.T) {
	if got := (ServiceConfig{}).Timeout(); got != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := (ServiceConfig{TimeoutMS: 2500}).Timeout(); got != 2500*time.Millisecond {
		t.Errorf("override timeout = %v", got)
	}
	if got := (ServiceConfig{TimeoutMS: -1}).Timeout(); got != DefaultTimeout {
		t.Errorf("negative override must fall back, got %v", got)
	}
}

func TestServiceConfigEqual(t *testing.T) {
	base := ServiceConfig{
		ID:      "files",
		Name:    "Files",
		Enabled: true,
		Command: "files-server",
		Args:    []string{"--root", "/data"},
		Env:     map[string]string{"MODE": "ro"},
	}
	if !base.equal(base) {
		t.Fatal("config must equal itself")
	}

	changed := base
	changed.Args = []string{"--root", "/other"}
	if base.equal(changed) {
		t.Error("arg change must be detected")
	}

	changed = base
	changed.Env = map[string]string{"MODE": "rw"}
	if base.equal(changed) {
		t.Error("env change must be detected")
	}

	changed = base
	changed.TimeoutMS = 100
	if base.equal(changed) {
		t.Error("timeout change must be detected")
	}
}
