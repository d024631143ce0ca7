package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/csrconv/pkg/buildinfo"
	"github.com/matzehuels/csrconv/pkg/cache"
	"github.com/matzehuels/csrconv/pkg/config"
	"github.com/matzehuels/csrconv/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "csrconv"

	// envRedisAddr names the environment variable holding a default Redis
	// address for the shared conversion cache.
	envRedisAddr = "CSRCONV_REDIS_ADDR"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Persistent flags
	configFile string
	noCache    bool
	redisAddr  string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "csrconv converts raw graph datasets to CSR files",
		Long:         `csrconv converts raw edge lists (SNAP, signed CSV, Ligra) into Compressed Sparse Row files, chunking the work so graphs larger than memory can be converted.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "dataset catalogue (default "+config.DefaultFile+")")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the conversion cache")
	flags.StringVar(&c.redisAddr, "redis-addr", os.Getenv(envRedisAddr), "share the conversion cache through Redis at host:port")

	// Register all subcommands
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.weightsCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.datasetsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if c.redisAddr != "" && !c.noCache {
		// Redis keys are namespaced by application.
		keyer = cache.NewScopedKeyer(nil, appName+":")
	}
	return pipeline.NewRunner(cc, keyer, c.Logger), nil
}

// newCache picks the cache backend: none, Redis when an address is given,
// otherwise the file cache. A file cache that cannot be created disables
// caching rather than failing the run.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	if c.redisAddr != "" {
		return cache.NewRedisCache(ctx, c.redisAddr, os.Getenv("CSRCONV_REDIS_PASSWORD"), 0)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("file cache unavailable, caching disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// loadCatalogue loads the catalogue named by --config, or the default file.
func (c *CLI) loadCatalogue() (*config.Catalogue, error) {
	return config.Load(configPath(c.configFile))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the conversion cache directory using the XDG standard
// (~/.cache/csrconv/conversions/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName, "conversions"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName, "conversions"), nil
}

// configPath returns the catalogue path, defaulting to ./csrconv.toml.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	return config.DefaultFile
}
