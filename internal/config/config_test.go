package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
collection:
  chunk_size: 500
  chunk_overlap: 50
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != "test.db" {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
	if cfg.Collection.ChunkSize != 500 || cfg.Collection.ChunkOverlap != 50 {
		t.Errorf("collection = %+v", cfg.Collection)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_zeroOverlapKept(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"explicit zero with size", "collection:\n  chunk_size: 800\n  chunk_overlap: 0\n", 0},
		{"explicit zero alone", "collection:\n  chunk_overlap: 0\n", 0},
		{"unset", "collection:\n  chunk_size: 600\n", 100},
		{"no collection section", "debug: false\n", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Collection.ChunkOverlap != tt.want {
				t.Errorf("chunk_overlap = %d, want %d", cfg.Collection.ChunkOverlap, tt.want)
			}
		})
	}
}

func TestApplyDefaults_zeroOverlapWithChunkSize(t *testing.T) {
	cfg := &Config{Collection: CollectionConfig{ChunkSize: 500}}
	ApplyDefaults(cfg)
	if cfg.Collection.ChunkOverlap != 0 {
		t.Errorf("chunk_overlap = %d, want 0", cfg.Collection.ChunkOverlap)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/chunks.db"
watch:
  directories: ["./dev/sample"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "chunks.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
	if cfg.Chat.EnvFile != filepath.Join(dir, ".env") {
		t.Errorf("env_file = %s", cfg.Chat.EnvFile)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overlap not below size", "collection:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"negative size", "collection:\n  chunk_size: -1\n"},
		{"unknown provider", "embedding:\n  provider: magic\n"},
		{"bad yaml", "collection: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadOrDefault_missingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Collection.Name != "documents" {
		t.Errorf("collection name = %q", cfg.Collection.Name)
	}
	if cfg.Storage.DatabasePath != filepath.Join("ragchat_db", "chunks.db") {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Collection.ChunkSize != 800 || cfg.Collection.ChunkOverlap != 100 {
		t.Errorf("default chunking: %+v", cfg.Collection)
	}
	if cfg.Collection.MaxContextChars != 4000 || cfg.Collection.DefaultNResults != 5 {
		t.Errorf("default retrieval: %+v", cfg.Collection)
	}
	if cfg.LLM.Model != "deepseek-r1-distill-llama-70b" || cfg.LLM.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("default llm: %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxTokens != 2048 {
		t.Errorf("default llm sampling: %+v", cfg.LLM)
	}
	if cfg.Chat.HistoryLimit != 20 {
		t.Errorf("default history limit: %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Embedding.Provider != ProviderONNX || cfg.Embedding.Dimensions != 384 {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if len(cfg.Watch.Extensions) != 5 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RAGCHAT_TEST_KEY=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGCHAT_TEST_KEY", "")
	os.Unsetenv("RAGCHAT_TEST_KEY")
	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	llm := LLMConfig{APIKeyEnv: "RAGCHAT_TEST_KEY"}
	if got := llm.APIKey(); got != "from-file" {
		t.Errorf("APIKey() = %q", got)
	}
	if err := LoadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
