package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/breeze-rmm/docverify/internal/model"
	"github.com/breeze-rmm/docverify/pkg/anthropic"
)

// systemInstruction is the fixed instruction describing the three assertion
// shapes and the extraction rules. It is identical for every page, which is
// what makes the prompt-cache breakpoint worthwhile.
const systemInstruction = `You convert product documentation into executable test assertions for the Breeze RMM platform.

Read the documentation page and emit a JSON array of assertions. Each assertion has:
- "id": unique within this page, kebab-case, stable for the same claim (e.g. "agents-enroll-001")
- "claim": the documented behavior in one sentence
- "severity": "critical" | "warning" | "info"
- "kind": "api" | "sql" | "ui"
- "test": a kind-specific object:
  - api: {"method", "path", "body"?, "headers"?, "expect": {"status"?, "body_contains"?: [..], "body_not_contains"?: [..], "content_type"?}}
  - sql: {"query": "<informal description of what to look up>", "expect": "<expected result description>"}
  - ui: {"navigate": "<path>", "steps"?: [..], "verify": "<what must be visible>"}

Rules:
- Only extract claims testable against a live deployment. Skip claims that depend on external services, customer hardware, or a specific operating system.
- API paths are relative (e.g. "/api/v1/agents").
- Prefer api over ui when a claim is testable either way.
- Output a raw JSON array with no markdown wrapping and no commentary. Output [] if the page makes no testable claims.`

const userPromptTemplate = `Documentation page: %s

%s`

// Service is the subset of the extraction-service client the coordinator
// needs. Satisfied by anthropic.Client.
type Service interface {
	CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// Options configures a Coordinator.
type Options struct {
	Model     string
	MaxTokens int64
	// Concurrency bounds the fan-out over pages needing re-extraction.
	Concurrency int
	// RatePerSec throttles extraction-service calls. Zero disables the
	// limiter.
	RatePerSec float64
}

// Coordinator walks documentation pages and (re)derives assertions for the
// ones whose content hash changed.
type Coordinator struct {
	svc     Service
	opts    Options
	limiter *rate.Limiter

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// New creates a Coordinator.
func New(svc Service, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return &Coordinator{svc: svc, opts: opts, limiter: limiter}
}

// Extract produces a fresh manifest for pages. For each page whose hash
// matches the prior manifest entry (incremental mode), the prior assertion
// list is reused verbatim without a service call. A page whose extraction
// response fails to parse is recorded with an empty assertion list and a
// warning; other pages continue.
func (c *Coordinator) Extract(ctx context.Context, pages []Page, prior *model.AssertionManifest, incremental bool) (*model.AssertionManifest, error) {
	out := &model.AssertionManifest{
		Version:     model.ManifestVersion,
		GeneratedAt: time.Now().UTC(),
		Pages:       make([]model.PageAssertions, len(pages)),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, page := range pages {
		g.Go(func() error {
			entry, err := c.extractPage(gCtx, page, prior, incremental)
			if err != nil {
				return err
			}
			// Slot assignment preserves input page order regardless of
			// completion order.
			out.Pages[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	usage := c.Usage()
	zap.L().Info("extraction token usage",
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Int64("cache_read_input_tokens", usage.CacheReadInputTokens),
		zap.Int64("cache_creation_input_tokens", usage.CacheCreationInputTokens),
	)
	return out, nil
}

// Usage returns the token usage accumulated across all service calls made
// by this coordinator.
func (c *Coordinator) Usage() anthropic.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Coordinator) addUsage(u anthropic.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.Add(u)
}

// extractPage handles one page: hash, incremental gate, service call, parse.
func (c *Coordinator) extractPage(ctx context.Context, page Page, prior *model.AssertionManifest, incremental bool) (model.PageAssertions, error) {
	text, err := os.ReadFile(page.Path)
	if err != nil {
		return model.PageAssertions{}, eris.Wrap(err, "extract: read page")
	}
	hash := HashContent(text)

	if incremental {
		if p := prior.Page(page.Source); p != nil && p.ContentHash == hash {
			zap.L().Info(fmt.Sprintf("[skip] %s (unchanged)", page.Source))
			return *p, nil
		}
	}

	assertions := c.extractAssertions(ctx, page, text)
	warnDroppedIDs(prior.Page(page.Source), assertions, page.Source)

	return model.PageAssertions{
		Source:      page.Source,
		ContentHash: hash,
		Assertions:  assertions,
	}, nil
}

// extractAssertions invokes the extraction service and parses its response.
// All failures degrade to an empty assertion list: a single page's bad
// extraction must not abort the batch.
func (c *Coordinator) extractAssertions(ctx context.Context, page Page, text []byte) []model.Assertion {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			zap.L().Warn("extract: rate limiter interrupted",
				zap.String("source", page.Source),
				zap.Error(err),
			)
			return nil
		}
	}

	start := time.Now()
	resp, err := c.svc.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemInstruction),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, page.Source, string(text))},
		},
	})
	if err != nil {
		zap.L().Warn("extract: service call failed, recording empty assertion list",
			zap.String("source", page.Source),
			zap.Error(err),
		)
		return []model.Assertion{}
	}
	c.addUsage(resp.Usage)

	assertions, err := ParseAssertions(resp.Text())
	if err != nil {
		zap.L().Warn("extract: malformed extraction response, recording empty assertion list",
			zap.String("source", page.Source),
			zap.Error(err),
		)
		return []model.Assertion{}
	}

	zap.L().Info("extracted page",
		zap.String("source", page.Source),
		zap.Int("assertions", len(assertions)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return assertions
}

// ParseAssertions parses the service response as a JSON array of assertions.
// Stray markdown fences are stripped first; duplicate ids within the page
// are disambiguated with numeric suffixes.
func ParseAssertions(text string) ([]model.Assertion, error) {
	cleaned := cleanJSON(text)

	var assertions []model.Assertion
	if err := json.Unmarshal([]byte(cleaned), &assertions); err != nil {
		return nil, eris.Wrap(err, "extract: parse assertions")
	}

	seen := make(map[string]int, len(assertions))
	for i := range assertions {
		id := assertions[i].ID
		seen[id]++
		if n := seen[id]; n > 1 {
			assertions[i].ID = fmt.Sprintf("%s-%d", id, n)
		}
	}
	if assertions == nil {
		assertions = []model.Assertion{}
	}
	return assertions, nil
}

// cleanJSON strips markdown code fences the model sometimes wraps around
// JSON output despite instructions.
func cleanJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// warnDroppedIDs logs ids that existed in the prior entry for this page but
// are missing from the new set. Id stability across re-extractions is
// promised informally by the service, not enforced; churn is surfaced in
// logs rather than rejected.
func warnDroppedIDs(prior *model.PageAssertions, current []model.Assertion, source string) {
	if prior == nil {
		return
	}
	have := make(map[string]bool, len(current))
	for _, a := range current {
		have[a.ID] = true
	}
	var dropped []string
	for _, a := range prior.Assertions {
		if !have[a.ID] {
			dropped = append(dropped, a.ID)
		}
	}
	if len(dropped) > 0 {
		zap.L().Warn("extract: assertion ids dropped on re-extraction",
			zap.String("source", source),
			zap.Strings("ids", dropped),
		)
	}
}
