// Package oracle provides the optional LLM directional hint: a cheap
// prefilter model decides whether the setup is worth a look, and a stronger
// decision model makes the call with higher-timeframe context.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/samber/lo"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// DefaultBaseURL is the OpenRouter chat completions endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1/"

// Config selects the models and endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	PrefilterModel string
	DecisionModel  string
	Timeout        time.Duration
	Temperature    float64
	// Intervals are the Binance kline intervals summarized for the decision
	// model.
	Intervals []string
}

// Agent is a domain.HintOracle backed by two chat models.
type Agent struct {
	client openai.Client
	cfg    Config
	klines KlineSource // optional
	logger *slog.Logger
}

// NewAgent creates an Agent. klines may be nil, in which case the decision
// model sees only the short-term indicators.
func NewAgent(cfg Config, klines KlineSource, logger *slog.Logger) *Agent {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = []string{"1h", "4h"}
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(1),
		option.WithHeader("HTTP-Referer", "https://polymarket-bot.local"),
	)
	return &Agent{
		client: client,
		cfg:    cfg,
		klines: klines,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

// Hint implements domain.HintOracle. A rejected prefilter, a HOLD, or a LOW
// confidence decision abstain with a nil hint.
func (a *Agent) Hint(ctx context.Context, snap domain.IndicatorSnapshot, market *domain.Market) (*domain.DirectionalHint, error) {
	pre, err := complete[prefilterResult](ctx, a, a.cfg.PrefilterModel, prefilterPrompt(snap, market), 400)
	if err != nil {
		return nil, fmt.Errorf("oracle: prefilter: %w", err)
	}
	if !pre.WorthAnalyzing {
		a.logger.InfoContext(ctx, "prefilter rejected setup",
			slog.String("likely_direction", pre.LikelyDirection),
			slog.String("reason", pre.Reason),
		)
		return nil, nil
	}

	var mc MarketContext
	if a.klines != nil {
		mc, err = BuildContext(ctx, a.klines, a.cfg.Intervals)
		if err != nil {
			a.logger.WarnContext(ctx, "higher timeframe context unavailable", slog.String("error", err.Error()))
		}
	}

	dec, err := complete[decisionResult](ctx, a, a.cfg.DecisionModel, decisionPrompt(snap, market, pre, mc), 1200)
	if err != nil {
		return nil, fmt.Errorf("oracle: decision: %w", err)
	}
	hint := toHint(dec)
	a.logger.InfoContext(ctx, "oracle decision",
		slog.String("signal", dec.Signal),
		slog.String("confidence", dec.Confidence),
		slog.String("reasoning", dec.Reasoning),
		slog.Bool("hint", hint != nil),
	)
	return hint, nil
}

func complete[T any](ctx context.Context, a *Agent, model, prompt string, maxTokens int64) (T, error) {
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(a.cfg.Temperature),
	})
	if err != nil {
		return lo.Empty[T](), fmt.Errorf("%s: %w", model, err)
	}
	if len(completion.Choices) == 0 {
		return lo.Empty[T](), errors.New(model + ": empty completion")
	}
	return parseResult[T](completion.Choices[0].Message.Content)
}

func toHint(d decisionResult) *domain.DirectionalHint {
	conf := domain.Confidence(strings.ToUpper(strings.TrimSpace(d.Confidence)))
	if conf != domain.ConfidenceHigh && conf != domain.ConfidenceMedium {
		return nil
	}
	var dir domain.Direction
	switch strings.ToUpper(strings.TrimSpace(d.Signal)) {
	case "BUY":
		dir = domain.DirectionUp
	case "SELL":
		dir = domain.DirectionDown
	default:
		return nil
	}
	return &domain.DirectionalHint{
		Direction:  dir,
		Confidence: conf,
		Source:     "AI",
		Reason:     truncate(d.Reasoning, 200),
	}
}

func opt(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

func marketLines(m *domain.Market, now time.Time) string {
	if m == nil {
		return "- Market: unavailable\n"
	}
	return fmt.Sprintf("- Time Remaining: %.1f minutes\n- Market UP Price: %.3f\n- Market DOWN Price: %.3f\n",
		m.MinutesLeft(now), m.Prices[domain.OutcomeUp], m.Prices[domain.OutcomeDown])
}

func prefilterPrompt(snap domain.IndicatorSnapshot, m *domain.Market) string {
	var b strings.Builder
	b.WriteString("You are a trading signal PRE-FILTER for 15-minute BTC up/down prediction markets. ")
	b.WriteString("Quickly decide if conditions warrant a deeper analysis.\n\n## Current Data\n")
	fmt.Fprintf(&b, "- BTC Price: $%.2f\n- RSI (14): %s\n- VWAP Deviation: %s%%\n- 60s Momentum: %s%%\n",
		snap.CurrentPrice, opt(snap.RSI, "%.1f"), opt(snap.VWAPDeviationPct, "%.3f"), opt(snap.MomentumPct, "%.3f"))
	b.WriteString(marketLines(m, snap.Time))
	b.WriteString(`
## REJECT if ANY:
- RSI between 45-55 (no direction)
- Momentum between -0.02% and +0.02% (flat)
- Time < 4 min or > 13 min

## APPROVE if:
- Clear signals (RSI < 40 or > 60)
- Strong momentum (|momentum| > 0.03%)
- Good timing (4-12 min remaining)

Respond with ONLY:
{"worth_analyzing": true | false, "likely_direction": "UP" | "DOWN" | "UNCLEAR", "reason": "One sentence"}
`)
	return b.String()
}

func decisionPrompt(snap domain.IndicatorSnapshot, m *domain.Market, pre prefilterResult, mc MarketContext) string {
	var b strings.Builder
	b.WriteString("You make the final decision for a BTC trading bot on Polymarket up/down markets.\n\n")
	b.WriteString(mc.String())
	b.WriteString("\n## Short-term indicators\n")
	fmt.Fprintf(&b, "- BTC Price: $%.2f\n- RSI (14): %s\n- VWAP Deviation: %s%%\n- 60s Momentum: %s%%\n- Trend: %s\n- Volatility (stddev): $%s\n- Samples: %d\n",
		snap.CurrentPrice, opt(snap.RSI, "%.1f"), opt(snap.VWAPDeviationPct, "%.3f"), opt(snap.MomentumPct, "%.3f"),
		snap.Trend, opt(snap.Volatility, "%.2f"), snap.SampleCount)
	b.WriteString(marketLines(m, snap.Time))
	fmt.Fprintf(&b, "\n## Pre-filter assessment\n%s - %s\n", pre.LikelyDirection, pre.Reason)
	b.WriteString(`
## Rules
- BUY = bet BTC ends the interval higher (buy UP token)
- SELL = bet BTC ends lower (buy DOWN token)
- HOLD = no trade, always acceptable
- If the market already prices your view above 55-60%, the edge is gone
- LOW confidence is never traded

Respond with ONLY this JSON:
{"signal": "BUY" | "SELL" | "HOLD", "confidence": "HIGH" | "MEDIUM" | "LOW", "reasoning": "3-4 sentences", "key_factors": ["..."], "concerns": ["..."], "edge_explanation": "..."}
`)
	return b.String()
}

var _ domain.HintOracle = (*Agent)(nil)
