package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/retry"
	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	VaultDir    string
	DataDir     string
	Port        string
	MetricsPort string

	QueueBatchSize  int
	ParallelLimit   int
	DebounceDelay   time.Duration
	Retry           retry.Config
	ThumbnailBudget int64

	Settings settings.Settings

	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	vaultDir := getEnv("VAULT_DIR", "/vault")
	dataDir := getEnv("DATA_DIR", "/data")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	queueBatchSize := getEnvInt("QUEUE_BATCH_SIZE", 100)
	parallelLimit := getEnvInt("PARALLEL_LIMIT", workers.ForMixed(16))
	debounceDelay := getEnvDuration("DEBOUNCE_DELAY", 300*time.Millisecond)
	retryCfg := retry.Config{
		InitialDelay: getEnvDuration("RETRY_INITIAL_DELAY", time.Second),
		MaxDelay:     getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		MaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 5),
	}
	thumbnailBudget := int64(getEnvInt("THUMBNAIL_BUDGET", 64))

	s := settings.Default()
	s.PreviewLength = getEnvInt("PREVIEW_LENGTH", s.PreviewLength)
	s.SkipFrontmatter = getEnvBool("SKIP_FRONTMATTER", s.SkipFrontmatter)
	s.SkipCodeBlocks = getEnvBool("SKIP_CODE_BLOCKS", s.SkipCodeBlocks)
	s.ThumbnailSize = getEnvInt("THUMBNAIL_SIZE", s.ThumbnailSize)
	s.ThumbnailQuality = getEnvInt("THUMBNAIL_QUALITY", s.ThumbnailQuality)
	s.FrontmatterTags = getEnvBool("FRONTMATTER_TAGS", s.FrontmatterTags)
	s.MetadataNameKey = getEnv("METADATA_NAME_KEY", s.MetadataNameKey)
	s.MetadataCreatedKey = getEnv("METADATA_CREATED_KEY", s.MetadataCreatedKey)

	logging.Info("  VAULT_DIR:            %s", vaultDir)
	logging.Info("  DATA_DIR:             %s", dataDir)
	logging.Info("  PORT:                 %s", port)
	logging.Info("  METRICS_PORT:         %s", metricsPort)
	logging.Info("  METRICS_ENABLED:      %v", metricsEnabled)
	logging.Info("  QUEUE_BATCH_SIZE:     %d", queueBatchSize)
	logging.Info("  PARALLEL_LIMIT:       %d", parallelLimit)
	logging.Info("  DEBOUNCE_DELAY:       %s", debounceDelay)
	logging.Info("  RETRY_INITIAL_DELAY:  %s", retryCfg.InitialDelay)
	logging.Info("  RETRY_MAX_DELAY:      %s", retryCfg.MaxDelay)
	logging.Info("  RETRY_MAX_ATTEMPTS:   %d", retryCfg.MaxAttempts)
	logging.Info("  THUMBNAIL_BUDGET:     %d MiB", thumbnailBudget)
	logging.Info("  PREVIEW_LENGTH:       %d", s.PreviewLength)
	logging.Info("  THUMBNAIL_SIZE:       %d", s.ThumbnailSize)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	vaultDir, err := filepath.Abs(vaultDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault directory path: %w", err)
	}
	logging.Info("  Vault directory (absolute): %s", vaultDir)

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute):  %s", dataDir)

	info, err := os.Stat(vaultDir)
	if err != nil {
		return nil, fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", vaultDir)
	}

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for the content store): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	return &Config{
		VaultDir:        vaultDir,
		DataDir:         dataDir,
		Port:            port,
		MetricsPort:     metricsPort,
		QueueBatchSize:  queueBatchSize,
		ParallelLimit:   parallelLimit,
		DebounceDelay:   debounceDelay,
		Retry:           retryCfg,
		ThumbnailBudget: thumbnailBudget,
		Settings:        s,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
		DatabasePath:    filepath.Join(dataDir, "content.db"),
	}, nil
}

// LogStoreInit logs content store initialization
func LogStoreInit(duration time.Duration, records int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CONTENT STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Store initialized in %v (%d records cached)", duration, records)
}

// LogScanStarted logs the start of the initial vault scan
func LogScanStarted(vaultDir string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("VAULT SCAN")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Scanning %s...", vaultDir)
}

// LogScanComplete logs scan completion
func LogScanComplete(notes int, duration time.Duration) {
	logging.Info("  [OK] Discovered %d notes in %v", notes, duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    _   __      __       __                 __
   / | / /___  / /____  / /_  ____  ____  / /__
  /  |/ / __ \/ __/ _ \/ __ \/ __ \/ __ \/ //_/
 / /|  / /_/ / /_/  __/ /_/ / /_/ / /_/ / ,<
/_/ |_/\____/\__/\___/_.___/\____/\____/_/|_| Navigator

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
