package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/lexiqai/tldr/internal/captions"
	"github.com/lexiqai/tldr/internal/config"
	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/pipeline"
	"github.com/lexiqai/tldr/internal/resilience"
	"github.com/lexiqai/tldr/internal/summarizer"
	"github.com/lexiqai/tldr/internal/transcript"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				if err := os.Setenv(config.FileEnv, path); err != nil {
					c.configErr = fmt.Errorf("set config path: %w", err)
					return
				}
			}
		}
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// initLogger sends logs to out. Commands that print results log to stderr.
func initLogger(cfg *config.Config, out *os.File) {
	observability.InitLogger(out, cfg.LogLevel, observability.PrettyOutput(cfg.LogFormat, out.Fd()))
}

// upstreams are the clients shared by every request of one process
type upstreams struct {
	captionsBreaker   *resilience.CircuitBreaker
	summarizerBreaker *resilience.CircuitBreaker
	captions          *captions.Client
	summarizer        *summarizer.GeminiClient
}

func newUpstreams(cfg *config.Config) *upstreams {
	u := &upstreams{
		captionsBreaker:   resilience.NewCircuitBreaker(captions.ServiceName, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout),
		summarizerBreaker: resilience.NewCircuitBreaker(summarizer.ServiceName, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout),
	}
	u.captions = captions.NewClient(cfg.CaptionsBaseURL, cfg.CaptionsTimeout, u.captionsBreaker)
	u.summarizer = summarizer.NewGeminiClient(cfg.SummarizeBaseURL, cfg.SummarizeTimeout, u.summarizerBreaker)
	return u
}

func (u *upstreams) checks() []observability.Check {
	return []observability.Check{
		{Name: captions.ServiceName, Func: u.captions.Healthy},
		{Name: summarizer.ServiceName, Func: u.summarizer.Healthy},
	}
}

func newPipeline(cfg *config.Config, u *upstreams) *pipeline.Service {
	return pipeline.New(u.captions, u.summarizer, pipeline.Options{
		DefaultLanguage: cfg.DefaultLanguage,
		Merge: transcript.MergeConfig{
			ParagraphPause:    cfg.ParagraphPause,
			RemoveAnnotations: cfg.RemoveAnnotations,
		},
	})
}
