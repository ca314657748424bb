/*

Categorical precondition errors for the pool engine. Every caller-facing
violation rejects the call atomically; mutating operations snapshot the token
ledger on entry and restore it on any error path.

*/

package pool

import "errors"

var (
	// Access control.
	ErrNotController = errors.New("caller is not the pool controller")

	// Referential.
	ErrNotBound = errors.New("token is not bound")

	// Lifecycle sequencing.
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrOutNotReady        = errors.New("output token has not reached its minimum balance")
	ErrTokenReady         = errors.New("token is already ready")
	ErrMinBalanceCooldown = errors.New("minimum balance update cooldown not met")
	ErrReentry            = errors.New("pool is locked by an in-flight operation")

	// Bounds.
	ErrInvalidTokenCount  = errors.New("token count out of range")
	ErrArrayLen           = errors.New("array length mismatch")
	ErrInvalidWeight      = errors.New("weight out of range")
	ErrInvalidFee         = errors.New("fee out of range")
	ErrMinBalance         = errors.New("minimum balance below floor")
	ErrMaxInRatio         = errors.New("amount in exceeds max ratio of balance")
	ErrMaxOutRatio        = errors.New("amount out exceeds max ratio of balance")
	ErrLimitPrice         = errors.New("spot price exceeds limit price")
	ErrLimitIn            = errors.New("amount in exceeds limit")
	ErrLimitOut           = errors.New("amount out below limit")
	ErrMaxPoolTokens      = errors.New("pool share cap exceeded")
	ErrInsufficientShares = errors.New("insufficient pool shares")

	// Flash lending.
	ErrInsufficientPayment = errors.New("flash loan repayment below amount due")
	ErrInsufficientBalance = errors.New("flash loan amount exceeds recorded balance")

	// Arithmetic degeneracy.
	ErrMathApprox = errors.New("operation rounds to zero effect")
)
