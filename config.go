package blogsync

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

const (
	DefaultContentDir        = "content"
	DefaultPublicDir         = "public"
	DefaultNamespace         = "blog"
	DefaultAllowedRemoteHost = "cdn.prod.website-files.com"
	DefaultJPEGQuality       = 70
	DefaultConvertQuality    = 95
	DefaultCompressThreshold = 200 << 10 // 200 KiB
	DefaultMaxRemoteBytes    = 25 << 20  // 25 MiB
	DefaultCheckTimeout      = 10 * time.Second
)

// Config holds everything a sync or check run needs.
type Config struct {
	ContentDir  string `toml:"content_dir"`
	PublicDir   string `toml:"public_dir"`   // resolves site-root locators like /img/a.png
	ProjectRoot string `toml:"project_root"` // fallback for site-root locators
	Namespace   string `toml:"namespace"`    // first segment of every upload key

	AccountID       string `toml:"account_id"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	PublicBaseURL   string `toml:"public_url"`
	Endpoint        string `toml:"endpoint"` // overrides the R2 endpoint derived from AccountID

	DryRun            bool   `toml:"-"`
	ProcessLocal      bool   `toml:"process_local"`
	ProcessRemote     bool   `toml:"process_remote"`
	AllowAllRemote    bool   `toml:"allow_all_remote"`
	AllowedRemoteHost string `toml:"allowed_remote_host"`
	SkipExisting      bool   `toml:"skip_existing"`

	OptimizeJPEG      bool  `toml:"optimize_jpeg"`
	JPEGQuality       int   `toml:"jpeg_quality"`
	ConvertQuality    int   `toml:"convert_quality"`
	CompressThreshold int64 `toml:"compress_threshold"`
	MaxRemoteBytes    int64 `toml:"max_remote_bytes"`

	CheckTimeout     time.Duration `toml:"check_timeout"`
	CheckConcurrency int           `toml:"check_concurrency"` // 0 means unbounded

	LedgerPath string `toml:"ledger"`
	LogLevel   string `toml:"log_level"`
}

// Default returns a Config with every default applied. Local references
// are processed and remote ones are not, matching a first migration run.
func Default() Config {
	c := Config{ProcessLocal: true}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.ContentDir == "" {
		c.ContentDir = DefaultContentDir
	}
	if c.PublicDir == "" {
		c.PublicDir = DefaultPublicDir
	}
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.AllowedRemoteHost == "" {
		c.AllowedRemoteHost = DefaultAllowedRemoteHost
	}
	c.JPEGQuality = NormalizeQuality(c.JPEGQuality)
	if c.ConvertQuality == 0 {
		c.ConvertQuality = DefaultConvertQuality
	}
	if c.CompressThreshold == 0 {
		c.CompressThreshold = DefaultCompressThreshold
	}
	if c.MaxRemoteBytes == 0 {
		c.MaxRemoteBytes = DefaultMaxRemoteBytes
	}
	if c.CheckTimeout == 0 {
		c.CheckTimeout = DefaultCheckTimeout
	}
	c.PublicBaseURL = strings.TrimSuffix(c.PublicBaseURL, "/")
}

// LoadConfig builds a Config from defaults, an optional TOML file at path,
// and environment variables, in increasing order of precedence.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	envString("R2_ACCOUNT_ID", &c.AccountID)
	envString("R2_ACCESS_KEY_ID", &c.AccessKeyID)
	envString("R2_SECRET_ACCESS_KEY", &c.SecretAccessKey)
	envString("R2_BUCKET_NAME", &c.Bucket)
	envString("R2_PUBLIC_URL", &c.PublicBaseURL)
	envString("R2_ENDPOINT", &c.Endpoint)
	envString("BLOGSYNC_CONTENT_DIR", &c.ContentDir)
	envString("BLOGSYNC_PUBLIC_DIR", &c.PublicDir)
	envString("BLOGSYNC_PROJECT_ROOT", &c.ProjectRoot)
	envString("BLOGSYNC_NAMESPACE", &c.Namespace)
	envString("BLOGSYNC_ALLOWED_REMOTE_HOST", &c.AllowedRemoteHost)
	envString("BLOGSYNC_LEDGER", &c.LedgerPath)
	envString("LOG_LEVEL", &c.LogLevel)
	if v := os.Getenv("BLOGSYNC_JPEG_QUALITY"); v != "" {
		if q, ok := ParseQuality(v); ok {
			c.JPEGQuality = q
		}
	}
}

// Validate reports a ConfigError when object storage settings are missing
// for a real run or when no reference class is selected.
func (c *Config) Validate() error {
	if !c.ProcessLocal && !c.ProcessRemote {
		return &ConfigError{Reason: "no reference class selected (local-only and remote-only are exclusive)"}
	}
	if c.DryRun {
		return nil
	}
	var missing []string
	for _, v := range []struct{ name, val string }{
		{"R2_ACCOUNT_ID", c.AccountID},
		{"R2_ACCESS_KEY_ID", c.AccessKeyID},
		{"R2_SECRET_ACCESS_KEY", c.SecretAccessKey},
		{"R2_BUCKET_NAME", c.Bucket},
		{"R2_PUBLIC_URL", c.PublicBaseURL},
	} {
		if v.val == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	if _, err := url.ParseRequestURI(c.PublicBaseURL); err != nil {
		return &ConfigError{Reason: fmt.Sprintf("R2_PUBLIC_URL %q is not a URL", c.PublicBaseURL)}
	}
	return nil
}

// NormalizeQuality clamps q to [1,100]; zero selects DefaultJPEGQuality.
func NormalizeQuality(q int) int {
	switch {
	case q == 0:
		return DefaultJPEGQuality
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return q
}

// ParseQuality parses a --jpeg-quality value. ok is false when raw is not
// an integer in [1,100]; the returned quality is then the default.
func ParseQuality(raw string) (int, bool) {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || q < 1 || q > 100 {
		return DefaultJPEGQuality, false
	}
	return q, true
}

// SelectSources maps the --include-remote, --local-only and --remote-only
// flags onto which reference classes are processed.
func SelectSources(includeRemote, localOnly, remoteOnly bool) (local, remote bool) {
	local, remote = true, includeRemote
	if localOnly {
		remote = false
	}
	if remoteOnly {
		local = false
		remote = !localOnly
	}
	return local, remote
}

// Option configures optional collaborators of a Syncer or Checker.
type Option func(*options)

type options struct {
	store    ObjectStore
	client   *http.Client
	log      zerolog.Logger
	observer Observer
	ledger   *Ledger
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{}
	}
	return o
}

// WithObjectStore sets the upload destination.
func WithObjectStore(s ObjectStore) Option {
	return func(o *options) { o.store = s }
}

// WithHTTPClient sets the client used for remote fetches and HEAD checks.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver sets the telemetry sink.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLedger records runs, uploads and check results in l.
func WithLedger(l *Ledger) Option {
	return func(o *options) { o.ledger = l }
}
