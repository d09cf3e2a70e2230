// Package authz implements the multi-party authorization checker.
package authz

import (
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// MultiSigChecker counts distinct authorized approvals against a quorum.
// It validates authorization claims only: the cryptographic signature bytes
// are verified by an external collaborator before the proof reaches this
// engine. Duplicate approvals from one signer count once.
type MultiSigChecker struct{}

func (MultiSigChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.MultiSigConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}

	proof, ok := ctx.Proof()
	if !ok || len(proof.Signatures) == 0 {
		return verify.Fail(r.Kind, "no signature proof supplied, need %d of %d signers",
			cfg.RequiredSignatures, len(cfg.Signers))
	}

	// Stale quorum: the whole proof expires once its collection timestamp is
	// older than the collection window. A proof without a collection timestamp
	// cannot demonstrate freshness, so a configured window rejects it.
	if cfg.CollectionWindowSeconds > 0 {
		if proof.CollectionTimestamp <= 0 {
			return verify.Fail(r.Kind, "signature proof has no collection timestamp, window is %ds",
				cfg.CollectionWindowSeconds).
				WithData(map[string]any{
					"collectionWindow": cfg.CollectionWindowSeconds,
				})
		}
		age := time.Duration(ctx.Timestamp-proof.CollectionTimestamp) * time.Millisecond
		window := time.Duration(cfg.CollectionWindowSeconds) * time.Second
		if age > window {
			return verify.Fail(r.Kind, "signature proof expired: collected %s ago, window is %s",
				age.Truncate(time.Second), window).
				WithData(map[string]any{
					"collectionTimestamp": proof.CollectionTimestamp,
					"collectionWindow":    cfg.CollectionWindowSeconds,
				})
		}
	}

	authorized := make(map[rule.Address]struct{}, len(cfg.Signers))
	for _, s := range cfg.Signers {
		authorized[s.Lower()] = struct{}{}
	}

	seen := make(map[rule.Address]struct{}, len(proof.Signatures))
	count := 0
	for _, sig := range proof.Signatures {
		signer := sig.Signer.Lower()
		if _, ok := authorized[signer]; !ok {
			continue
		}
		if _, dup := seen[signer]; dup {
			continue
		}
		seen[signer] = struct{}{}
		count++
	}

	if count < cfg.RequiredSignatures {
		return verify.Fail(r.Kind, "quorum not met: %d of %d required signatures",
			count, cfg.RequiredSignatures).
			WithData(map[string]any{
				"validSignatures":    count,
				"requiredSignatures": cfg.RequiredSignatures,
			})
	}
	return verify.Pass(r.Kind)
}

// Compile-time interface verification.
var _ verify.Checker = MultiSigChecker{}
