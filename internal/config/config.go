package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds every tunable the tool uses. All paths and endpoints are
// explicit here so nothing reaches for process-global state.
type Config struct {
	// RegistryURL is the Docker Hub v2 tag listing endpoint for the
	// tracked image repository.
	RegistryURL string `yaml:"registryUrl"`
	// TagPrefix selects which tags count as nightly builds.
	TagPrefix string `yaml:"tagPrefix"`
	// ImageRepository is used when rendering tag references.
	ImageRepository string `yaml:"imageRepository"`
	// PrimaryRoleSuffix is the tag role shown by default (others need --all-tags).
	PrimaryRoleSuffix string `yaml:"primaryRoleSuffix"`
	// ShaLength is the expected length of the build identifier embedded in tag names.
	ShaLength int `yaml:"shaLength"`
	// MaxPages bounds how many registry pages a single run fetches.
	MaxPages int `yaml:"maxPages"`
	// PageSize is the registry page size.
	PageSize int `yaml:"pageSize"`

	// RepoPath is the local clone the commit resolver operates on.
	RepoPath string `yaml:"repoPath"`
	// RemoteRef is the remote-tracking ref commits must be reachable from.
	RemoteRef string `yaml:"remoteRef"`
	// GitHubProject is the owner/name used for tree and PR links.
	GitHubProject string `yaml:"githubProject"`
	// ManifestPath is the dependency manifest location inside the repo.
	ManifestPath string `yaml:"manifestPath"`

	// CachePath is where the merged nightly set is persisted between runs.
	CachePath string `yaml:"cachePath"`
	// FetchCooldown is how long a successful remote refresh suppresses the next one.
	FetchCooldown time.Duration `yaml:"fetchCooldown"`
	// HTTPTimeout bounds each registry request.
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	// DiffSpillThreshold is the patch line count above which the full diff
	// is written to temp files instead of only summarized.
	DiffSpillThreshold int `yaml:"diffSpillThreshold"`

	LogLevel slog.Level `yaml:"-"`
}

const (
	defaultRegistryURL   = "https://hub.docker.com/v2/repositories/datadog/agent-dev/tags"
	defaultTagPrefix     = "nightly-main-"
	defaultImageRepo     = "datadog/agent-dev"
	defaultGitHubProject = "DataDog/datadog-agent"
	defaultManifestPath  = "release.json"
	defaultRemoteRef     = "refs/remotes/origin/main"
)

// Load builds a Config from defaults, then the optional YAML config file,
// then environment variables. Env always wins.
func Load() *Config {
	cfg := &Config{
		RegistryURL:        defaultRegistryURL,
		TagPrefix:          defaultTagPrefix,
		ImageRepository:    defaultImageRepo,
		PrimaryRoleSuffix:  "-py3",
		ShaLength:          8,
		MaxPages:           1,
		PageSize:           100,
		RepoPath:           defaultRepoPath(),
		RemoteRef:          defaultRemoteRef,
		GitHubProject:      defaultGitHubProject,
		ManifestPath:       defaultManifestPath,
		CachePath:          filepath.Join(os.TempDir(), "agent_nightlies.json"),
		FetchCooldown:      5 * time.Minute,
		HTTPTimeout:        30 * time.Second,
		DiffSpillThreshold: 400,
		LogLevel:           slog.LevelInfo,
	}

	cfg.applyFile(configFilePath())
	cfg.applyEnv()
	return cfg
}

func defaultRepoPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "go", "src", "github.com", "DataDog", "datadog-agent")
}

func configFilePath() string {
	if p := os.Getenv("NIGHTLIES_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "nightlies", "config.yaml")
}

func (c *Config) applyFile(path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read config file", "path", path, "error", err)
		}
		return
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		slog.Warn("Failed to parse config file, ignoring it", "path", path, "error", err)
	}
}

func (c *Config) applyEnv() {
	setString(&c.RegistryURL, "NIGHTLIES_REGISTRY_URL")
	setString(&c.TagPrefix, "NIGHTLIES_TAG_PREFIX")
	setString(&c.ImageRepository, "NIGHTLIES_IMAGE_REPOSITORY")
	setString(&c.PrimaryRoleSuffix, "NIGHTLIES_PRIMARY_ROLE_SUFFIX")
	setString(&c.RepoPath, "NIGHTLIES_REPO_PATH")
	setString(&c.RemoteRef, "NIGHTLIES_REMOTE_REF")
	setString(&c.GitHubProject, "NIGHTLIES_GITHUB_PROJECT")
	setString(&c.ManifestPath, "NIGHTLIES_MANIFEST_PATH")
	setString(&c.CachePath, "NIGHTLIES_CACHE_PATH")
	setInt(&c.ShaLength, "NIGHTLIES_SHA_LENGTH")
	setInt(&c.MaxPages, "NIGHTLIES_MAX_PAGES")
	setInt(&c.PageSize, "NIGHTLIES_PAGE_SIZE")
	setInt(&c.DiffSpillThreshold, "NIGHTLIES_DIFF_SPILL_THRESHOLD")
	setDuration(&c.FetchCooldown, "NIGHTLIES_FETCH_COOLDOWN")
	setDuration(&c.HTTPTimeout, "NIGHTLIES_HTTP_TIMEOUT")
	c.LogLevel = parseLogLevel(os.Getenv("LOG_LEVEL"), c.LogLevel)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer env var", "key", key, "value", v)
		return
	}
	*dst = n
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		slog.Warn("Ignoring invalid duration env var", "key", key, "value", v)
		return
	}
	*dst = d
}

func parseLogLevel(value string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "":
		return fallback
	default:
		slog.Warn("Unknown LOG_LEVEL, keeping default", "value", value)
		return fallback
	}
}
