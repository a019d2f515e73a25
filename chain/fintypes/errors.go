package fintypes

import "fmt"

// ErrorKind is the error taxonomy of spec.md §7: every CoreError belongs
// to exactly one kind, which governs how a caller is expected to react.
type ErrorKind uint8

const (
	// KindAuthorization: caller is not the declared authority for the operation.
	KindAuthorization ErrorKind = iota + 1
	// KindInvariant: the operation would break a stated invariant.
	KindInvariant
	// KindArithmetic: checked overflow or division by zero in a core formula.
	KindArithmetic
	// KindStaleness: a timestamp fell outside its permitted window.
	KindStaleness
	// KindCryptographic: signature, merkle proof, or hash mismatch.
	KindCryptographic
	// KindConfiguration: a parameter is out of its declared bounds.
	KindConfiguration
	// KindRateLimited: a cooldown or frequency guard was hit.
	KindRateLimited
	// KindSystemState: paused, recovery mode, or emergency halt.
	KindSystemState
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindInvariant:
		return "invariant"
	case KindArithmetic:
		return "arithmetic"
	case KindStaleness:
		return "staleness"
	case KindCryptographic:
		return "cryptographic"
	case KindConfiguration:
		return "configuration"
	case KindRateLimited:
		return "rate_limited"
	case KindSystemState:
		return "system_state"
	default:
		return "unknown"
	}
}

// CoreError is the single error type every handler returns on failure. It
// carries a stable numeric code and a single-line human message, per
// spec.md §7 "User-visible behavior" — plain errors.New/fmt.Errorf (the
// teacher's usual idiom, e.g. chain/types/token.go's ErrInsufficientBalance)
// cannot carry a stable code, so this type generalizes that idiom rather
// than replacing it.
type CoreError struct {
	Code    int
	Kind    ErrorKind
	Message string
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("[%s:%d] %s", e.Kind, e.Code, e.Message)
}

func newErr(kind ErrorKind, code int, format string, args ...interface{}) *CoreError {
	return &CoreError{Code: code, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Stable error codes, grouped loosely by kind in blocks of 100 (the 900
// block holds governance errors). The grouping is a convention only: some
// codes are raised under a kind other than their block's (for example
// CodeUserSuspended as system-state, CodeInCoolingPeriod as rate-limited,
// CodeUnknownValidator as authorization), so CoreError.Kind, not the code,
// is authoritative for the kind.
const (
	CodeNotAuthority        = 100
	CodeNotIssuer           = 101
	CodeNotEmergencyAuth    = 102
	CodeNotGovernance       = 103
	CodeInsufficientStake   = 200
	CodeStillLocked         = 201
	CodePoolInactive        = 202
	CodeNotStarted          = 203
	CodeEnded               = 204
	CodeInsufficientRewards = 205
	CodeCompoundUnsupported = 206
	CodeSlotsFull           = 207
	CodeSynergyCapExceeded  = 208
	CodeCyclicReferral      = 209
	CodeReferralCapExceeded = 210
	CodeDailyCapExceeded    = 211
	CodeUserSuspended       = 212
	CodeInCoolingPeriod     = 213
	CodeDuplicateSignature  = 214
	CodeUnknownValidator    = 215
	CodeInvalidTransition   = 216
	CodeNonceReused         = 217
	CodeMathOverflow        = 300
	CodeDivideByZero        = 301
	CodeStaleTimestamp      = 400
	CodeFutureTimestamp     = 401
	CodeFeedStale           = 402
	CodeDeadlineExceeded    = 403
	CodeExpired             = 404
	CodeBadSignature        = 500
	CodeBadMerkleProof      = 501
	CodeMessageHashMismatch = 502
	CodeBadThreshold        = 600
	CodeUnknownTier         = 601
	CodeUnknownCardType     = 602
	CodeFeeOverCap          = 603
	CodeCooldownActive      = 700
	CodeNetworkPaused       = 800
	CodeCircuitHalted       = 801
	CodeRecoveryMode        = 802
	CodeBridgePaused        = 803
	CodeProposalNotFound    = 900
	CodeVotingNotOpen       = 901
	CodeAlreadyVoted        = 902
	CodeQuorumNotMet        = 903
	CodeProposalNotPassed   = 904
	CodeAlreadyExecuted     = 905
	CodeExecutionDelayActive = 906
	CodeNotActiveValidator  = 907
)

func ErrAuthorization(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindAuthorization, code, format, args...)
}
func ErrInvariant(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindInvariant, code, format, args...)
}
func ErrArithmetic(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindArithmetic, code, format, args...)
}
func ErrStaleness(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindStaleness, code, format, args...)
}
func ErrCryptographic(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindCryptographic, code, format, args...)
}
func ErrConfiguration(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindConfiguration, code, format, args...)
}
func ErrRateLimited(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindRateLimited, code, format, args...)
}
func ErrSystemState(code int, format string, args ...interface{}) *CoreError {
	return newErr(KindSystemState, code, format, args...)
}
