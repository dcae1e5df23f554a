package repomirror

import (
	"github.com/bianoble/repo-mirror/internal/config"
	"github.com/bianoble/repo-mirror/internal/engine"
	"github.com/bianoble/repo-mirror/internal/mirror"
	"github.com/bianoble/repo-mirror/internal/reconcile"
	"github.com/bianoble/repo-mirror/internal/store"
)

// Config is a loaded repo-mirror configuration.
type Config = config.Config

// Store is the repository boundary a Client drives.
type Store = store.Store

// PassReport summarizes one mirroring pass.
type PassReport = engine.PassReport

// StatusResult describes the last recorded pass.
type StatusResult = engine.StatusResult

// InfoResult holds tool and repository information.
type InfoResult = engine.InfoResult

// MirrorResult is the outcome of one attempted ref.
type MirrorResult = mirror.MirrorResult

// Outcome is the final state of one attempted ref.
type Outcome = mirror.Outcome

// ReconcileReport describes the metadata reconciliation of a pass.
type ReconcileReport = reconcile.Report

// Ref outcomes.
const (
	Promoted         = mirror.Promoted
	PullFailed       = mirror.PullFailed
	ResolutionFailed = mirror.ResolutionFailed
	PromotionFailed  = mirror.PromotionFailed
)

// Errors a pass can stop on.
type (
	ConfigError     = config.ConfigError
	ValidationError = config.ValidationError
	InitError       = store.InitError
)
