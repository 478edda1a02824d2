package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/pdaviz/pkg/cache"
	"github.com/matzehuels/pdaviz/pkg/config"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
)

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"render", "replay", "serve", "cache", "config", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestLoadConfigMatcherOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--matcher", "http://matcher:9000", "config", "show"})
	root.SetOut(io.Discard)
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if c.Config.Matcher.URL != "http://matcher:9000" {
		t.Errorf("Matcher.URL = %q, want override", c.Config.Matcher.URL)
	}
}

func TestLoadConfigMissingExplicit(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.toml"), "cache", "path"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Error("Execute() with a missing --config file should fail")
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdaviz", "config.toml")

	if err := initConfig(path, false); err != nil {
		t.Fatalf("initConfig() error: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() of written config: %v", err)
	}
	if cfg.Matcher.URL != config.Default().Matcher.URL {
		t.Errorf("Matcher.URL = %q", cfg.Matcher.URL)
	}

	if err := initConfig(path, false); err == nil {
		t.Error("initConfig() over an existing file should fail without force")
	}
	if err := initConfig(path, true); err != nil {
		t.Errorf("initConfig(force) error: %v", err)
	}
}

func TestConfigInitMissingExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.toml")

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", path, "config", "init"})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := showConfig(&buf, config.Default()); err != nil {
		t.Fatalf("showConfig() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# built-in defaults", "[matcher]", "http://localhost:5000"} {
		if !strings.Contains(out, want) {
			t.Errorf("showConfig() missing %q:\n%s", want, out)
		}
	}
}

func TestCacheOptions(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	c := New(io.Discard, LogInfo)
	opts, err := c.cacheOptions()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg-cache", appName, "artifacts"); opts.Dir != want {
		t.Errorf("Dir = %q, want %q", opts.Dir, want)
	}

	c.Config.Cache.Backend = cache.BackendRedis
	c.Config.Cache.RedisAddr = "localhost:6379"
	opts, err = c.cacheOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Dir != "" || opts.Redis.Addr != "localhost:6379" {
		t.Errorf("redis options = %+v", opts)
	}
}

func TestReadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.py")
	os.WriteFile(path, []byte("x = 1\n"), 0o644)

	got, err := readSource(path)
	if err != nil || got != "x = 1\n" {
		t.Errorf("readSource() = %q, %v", got, err)
	}
	if _, err := readSource(path + ".missing"); err == nil {
		t.Error("readSource() of a missing file should fail")
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	code := filepath.Join(dir, "a.py")
	pattern := filepath.Join(dir, "b.pyt")
	os.WriteFile(code, []byte("x = 1"), 0o644)
	os.WriteFile(pattern, []byte("x = _"), 0o644)

	files, err := sourceFiles(code, pattern)
	if err != nil {
		t.Fatalf("sourceFiles() error: %v", err)
	}
	if files[code] != replay.RoleCode || files[pattern] != replay.RolePattern {
		t.Errorf("sourceFiles() = %v", files)
	}

	if _, err := sourceFiles(code, code); err == nil {
		t.Error("sourceFiles() with the same file twice should fail")
	}
	if _, err := sourceFiles(code, filepath.Join(dir, "missing.pyt")); err == nil {
		t.Error("sourceFiles() with a missing file should fail")
	}
}
