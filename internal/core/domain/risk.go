package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RiskAction string

const (
	RiskActionAllow RiskAction = "ALLOW"
	RiskActionFlag  RiskAction = "FLAG"
	RiskActionBlock RiskAction = "BLOCK"
)

type FlagKind string

const (
	FlagHighFrequency    FlagKind = "HIGH_FREQUENCY_REQUESTS"
	FlagMultipleAccounts FlagKind = "MULTIPLE_ACCOUNTS_DETECTION"
	FlagBotSuspicion     FlagKind = "BOT_SUSPICION"
	FlagLowValueOrder    FlagKind = "LOW_VALUE_ORDER"
)

// SecurityContext identifies the caller of a risk-gated action.
type SecurityContext struct {
	IP        string
	UserID    string
	UserAgent string
}

type PayloadKind string

const (
	PayloadOrder PayloadKind = "ORDER"
	PayloadLogin PayloadKind = "LOGIN"
)

// RiskPayload is the action being gated. Amount is only meaningful for
// PayloadOrder.
type RiskPayload struct {
	Kind   PayloadKind
	Amount decimal.Decimal
}

// RiskAssessment is created fresh per Assess call and never mutated after.
type RiskAssessment struct {
	Score  int
	Flags  []FlagKind
	Action RiskAction
}

func (a RiskAssessment) Has(flag FlagKind) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AuditRecord is the durable shape handed to the audit sink.
type AuditRecord struct {
	UserID    string
	Action    string
	Entity    string
	EntityID  string
	Metadata  map[string]any
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
