package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeServerURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			in:   "https://tenant.hosted.panopto.com/Panopto/Pages/Home.aspx?x=1",
			want: "https://tenant.hosted.panopto.com",
		},
		{
			in:   "tenant.hosted.panopto.com",
			want: "https://tenant.hosted.panopto.com",
		},
		{
			in:   "https://example.com/video/",
			want: "https://example.com/video",
		},
		{
			in:   "http://127.0.0.1:8080#frag",
			want: "http://127.0.0.1:8080",
		},
		{
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		if got := NormalizeServerURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeServerURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServerHost(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "tenant.hosted.panopto.com", want: "tenant.hosted.panopto.com"},
		{in: "https://tenant.hosted.panopto.com/Panopto", want: "tenant.hosted.panopto.com"},
		{in: "http://127.0.0.1:8080", want: "127.0.0.1:8080"},
	}
	for _, tc := range cases {
		if got := ServerHost(tc.in); got != tc.want {
			t.Fatalf("ServerHost(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSelectSkipsIncompleteSlots(t *testing.T) {
	instances := []Instance{
		{ServerName: "one.example.com", Slot: 1},
		{ServerName: "two.example.com", ApplicationKey: "key-2", Slot: 2},
	}
	got, err := Select(instances)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Slot != 2 || got.ApplicationKey != "key-2" {
		t.Fatalf("expected slot 2, got %+v", got)
	}
}

func TestSelectNoCompleteInstance(t *testing.T) {
	_, err := Select([]Instance{{ServerName: "one.example.com"}, {ApplicationKey: "key"}})
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if _, err := Select(nil); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing for empty list, got %v", err)
	}
}

func TestNumberedSlotsWithCount(t *testing.T) {
	env := map[string]string{
		"PANOPTO_SERVER_NUMBER":    "1",
		"PANOPTO_SERVER_NAME1":     "one.example.com",
		"PANOPTO_SERVER_NAME2":     "two.example.com",
		"PANOPTO_APPLICATION_KEY2": "key-2",
		"PANOPTO_SERVER_NAME3":     "three.example.com",
		"PANOPTO_APPLICATION_KEY3": "key-3",
	}
	slots := NumberedSlots(func(k string) string { return env[k] }, "PANOPTO_")
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if slots[0].Slot != 1 || slots[0].Overflow {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}
	if slots[1].Slot != 2 || !slots[1].Overflow {
		t.Fatalf("expected slot 2 flagged as overflow, got %+v", slots[1])
	}

	got, err := Select(slots)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.ServerName != "two.example.com" {
		t.Fatalf("expected two.example.com, got %s", got.ServerName)
	}
}

func TestNumberedSlotsWithoutCount(t *testing.T) {
	env := map[string]string{
		"PANOPTO_SERVER_NAME1":     "one.example.com",
		"PANOPTO_APPLICATION_KEY1": "key-1",
		"PANOPTO_SERVER_NAME3":     "three.example.com",
		"PANOPTO_APPLICATION_KEY3": "key-3",
	}
	slots := NumberedSlots(func(k string) string { return env[k] }, "PANOPTO_")
	if len(slots) != 1 {
		t.Fatalf("expected scan to stop at slot 2, got %+v", slots)
	}
	if slots[0].Overflow {
		t.Fatalf("slot without count must not be overflow")
	}
}

func TestLoadSaveRoundTripRenumbers(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{InstanceName: "moodle"}
	cfg.AddInstance(Instance{ServerName: "one.example.com", ApplicationKey: "k1"})
	cfg.AddInstance(Instance{ServerName: "two.example.com", ApplicationKey: "k2"})
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Instances) != 2 || loaded.Instances[1].Slot != 2 {
		t.Fatalf("unexpected instances: %+v", loaded.Instances)
	}

	if err := loaded.RemoveInstance(1); err != nil {
		t.Fatalf("RemoveInstance: %v", err)
	}
	if loaded.Instances[0].ServerName != "two.example.com" || loaded.Instances[0].Slot != 1 {
		t.Fatalf("expected renumbered slot, got %+v", loaded.Instances[0])
	}
	if err := loaded.RemoveInstance(5); err == nil {
		t.Fatalf("expected error for missing slot")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Instances) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestImportYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.yaml")
	data := "instances:\n  - server_name: \" one.example.com \"\n    application_key: k1\n  - server_name: two.example.com\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	instances, err := ImportYAML(path)
	if err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}
	if len(instances) != 2 || instances[0].ServerName != "one.example.com" {
		t.Fatalf("unexpected instances: %+v", instances)
	}
	if instances[1].Complete() {
		t.Fatalf("second instance has no key and must be incomplete")
	}
}

func TestUserKey(t *testing.T) {
	cfg := &Config{InstanceName: "moodle"}
	cfg.ApplyDefaults()
	if got := cfg.UserKey(); got != `moodle\relink-service` {
		t.Fatalf("UserKey = %q", got)
	}
}
