package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"tableread/internal/config"
	"tableread/internal/coordinator"
	"tableread/internal/logging"
	"tableread/internal/remote"
	"tableread/internal/sessioncache"
	"tableread/internal/voicecache"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) baseURL() string {
	if c.serverFlag != nil {
		if url := strings.TrimSpace(*c.serverFlag); url != "" {
			return url
		}
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Client.BaseURL
	}
	return ""
}

func (c *commandContext) newClient() (*remote.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return remote.NewClient(remote.ClientOptions{
		BaseURL:     c.baseURL(),
		Token:       cfg.Paths.APIToken,
		Timeout:     time.Duration(cfg.Client.TimeoutSeconds) * time.Second,
		ReadRetries: cfg.Client.ReadRetries,
		Logger:      logging.NewNop(),
	})
}

// syncStack is one invocation's client-side session pipeline: the HTTP store
// adapter, the document cache the UI reads, the mutation coordinator that
// writes it, and the voice resolution cache.
type syncStack struct {
	client *remote.Client
	cache  *sessioncache.Cache
	coord  *coordinator.Coordinator
	voices *voicecache.Cache
}

// withStack builds the sync pipeline, runs fn, and tears the coordinator
// down afterwards so queued commits resolve before the process exits.
func (c *commandContext) withStack(fn func(*syncStack) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := c.newClient()
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	cache := sessioncache.New(logger)
	coord := coordinator.New(client, cache, cfg, logger)
	defer coord.Close()

	stack := &syncStack{
		client: client,
		cache:  cache,
		coord:  coord,
		voices: voicecache.New(client, logger),
	}
	return fn(stack)
}

// describeFailure rewrites taxonomy errors into operator guidance. Unknown
// errors pass through untouched.
func describeFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, remote.ErrNetwork):
		return fmt.Errorf("%w; is a tableread server running? start one with `tableread serve`", err)
	case errors.Is(err, remote.ErrConflict):
		return fmt.Errorf("%w; the session changed remotely, rerun the command against the fresh state", err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
