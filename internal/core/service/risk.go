package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/metrics"
	"github.com/pappertech/dispatch-core/internal/port"
)

// Additive weights per signal. The score is never clamped; thresholds only
// compare against it.
const (
	weightHighFrequency    = 40
	weightMultipleAccounts = 30
	weightBotSuspicion     = 60
	weightLowValueOrder    = 10
)

// automationSignatures are matched case-insensitively against the client
// user-agent.
var automationSignatures = []string{"bot", "headless"}

type RiskConfig struct {
	FlagThreshold  int // score >= FlagThreshold  -> FLAG
	BlockThreshold int // score >= BlockThreshold -> BLOCK

	// LinkedAccountLimit is the number of distinct accounts per IP above
	// which the multiple-account signal triggers.
	LinkedAccountLimit int

	// LowValueThreshold is the order amount below which the low-value-order
	// signal triggers.
	LowValueThreshold decimal.Decimal

	// LinkageLookupTimeout bounds the linkage store lookup. On timeout or
	// store failure the signal is skipped and the assessment proceeds
	// without it.
	LinkageLookupTimeout time.Duration
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		FlagThreshold:        40,
		BlockThreshold:       80,
		LinkedAccountLimit:   3,
		LowValueThreshold:    decimal.NewFromInt(100),
		LinkageLookupTimeout: 500 * time.Millisecond,
	}
}

// RiskEngine scores inbound actions before any state mutation runs. It holds
// no mutable state of its own; the sliding counters live behind the limiter
// and linkage ports.
type RiskEngine struct {
	limiter port.RateLimiter
	linkage port.LinkageStore
	audit   port.AuditSink
	cfg     RiskConfig
	logger  *zap.Logger
}

func NewRiskEngine(limiter port.RateLimiter, linkage port.LinkageStore, audit port.AuditSink, cfg RiskConfig, logger *zap.Logger) *RiskEngine {
	return &RiskEngine{limiter: limiter, linkage: linkage, audit: audit, cfg: cfg, logger: logger}
}

// Assess combines the independent signals into a fresh assessment. It always
// returns a decision: signal-source failures degrade to the signal not
// triggering, never to an error.
func (e *RiskEngine) Assess(ctx context.Context, sctx domain.SecurityContext, payload domain.RiskPayload) domain.RiskAssessment {
	var flags []domain.FlagKind
	score := 0

	allowed, err := e.limiter.Allow(ctx, sctx.IP)
	if err != nil {
		e.logger.Warn("rate limit check failed", zap.String("ip", sctx.IP), zap.Error(err))
	} else if !allowed {
		flags = append(flags, domain.FlagHighFrequency)
		score += weightHighFrequency
		metrics.RateLimitExceededTotal.Inc()
	}

	if sctx.UserID != "" {
		linkCtx, cancel := context.WithTimeout(ctx, e.cfg.LinkageLookupTimeout)
		linked, err := e.linkage.CountLinkedAccounts(linkCtx, sctx.IP)
		cancel()
		if err != nil {
			metrics.LinkageLookupFailuresTotal.Inc()
			e.logger.Warn("linkage lookup failed, skipping signal",
				zap.String("ip", sctx.IP), zap.Error(err))
		} else if linked > e.cfg.LinkedAccountLimit {
			flags = append(flags, domain.FlagMultipleAccounts)
			score += weightMultipleAccounts
		}
	}

	if ua := strings.ToLower(sctx.UserAgent); ua != "" {
		for _, sig := range automationSignatures {
			if strings.Contains(ua, sig) {
				flags = append(flags, domain.FlagBotSuspicion)
				score += weightBotSuspicion
				break
			}
		}
	}

	if payload.Kind == domain.PayloadOrder && payload.Amount.LessThan(e.cfg.LowValueThreshold) {
		flags = append(flags, domain.FlagLowValueOrder)
		score += weightLowValueOrder
	}

	action := domain.RiskActionAllow
	switch {
	case score >= e.cfg.BlockThreshold:
		action = domain.RiskActionBlock
	case score >= e.cfg.FlagThreshold:
		action = domain.RiskActionFlag
	}

	metrics.RiskAssessmentsTotal.WithLabelValues(string(action)).Inc()
	if action != domain.RiskActionAllow {
		e.logger.Info("risk signal",
			zap.String("ip", sctx.IP),
			zap.Int("score", score),
			zap.String("action", string(action)))
	}

	return domain.RiskAssessment{Score: score, Flags: flags, Action: action}
}

// LogSecurityEvent records rec in the audit sink. Failures are swallowed and
// reported out of band; they never reach the caller's decision path.
func (e *RiskEngine) LogSecurityEvent(ctx context.Context, rec domain.AuditRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Entity == "" {
		rec.Entity = "SECURITY"
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		e.logger.Error("failed to record security event",
			zap.String("action", rec.Action), zap.Error(err))
	}
	if severity, ok := rec.Metadata["severity"].(string); ok && severity == "HIGH" {
		e.logger.Warn("critical security event",
			zap.String("action", rec.Action),
			zap.String("user_id", rec.UserID),
			zap.String("ip", rec.IPAddress))
	}
}
