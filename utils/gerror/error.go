package gerror

import "errors"

var (
	// ErrStorageNotFound is used when the object is not found in the storage
	ErrStorageNotFound = errors.New("not found in the Storage")
	// ErrStorageNotRegister is used when the object is not found in the synchronizer
	ErrStorageNotRegister = errors.New("not registered storage")
	// ErrNilDBTransaction indicates the db transaction has not been properly initialized
	ErrNilDBTransaction = errors.New("database transaction not properly initialized")
	// ErrAlreadyExists is returned when a record with the same unique key is already stored
	ErrAlreadyExists = errors.New("already exists in the Storage")
	// ErrNetworkNotRegister is used when the network is not configured in the bridge
	ErrNetworkNotRegister = errors.New("not registered network")
	// ErrTokenNotRegister is used when the token is not configured for the network
	ErrTokenNotRegister = errors.New("not registered token")
	// ErrInvalidTransition is returned when a deposit status change is not allowed
	ErrInvalidTransition = errors.New("invalid deposit status transition")
	// ErrInsufficientLiquidity indicates the pool cannot fund the payout
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrNoLiquidityPath indicates the router has no usable quote for the swap fallback
	ErrNoLiquidityPath = errors.New("no liquidity path")
	// ErrAllEndpointsFailed is returned when every configured endpoint of a source failed
	ErrAllEndpointsFailed = errors.New("all endpoints failed")
	// ErrUnauthorized is returned when the caller is not allowed to perform the action
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLockNotAcquired is returned when a payout lock is held by another worker
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrTxUnconfirmed is returned when a payout was submitted but its outcome is unknown
	ErrTxUnconfirmed = errors.New("transaction submitted but not confirmed")
	// ErrTxReverted is returned when a payout transaction was mined with a failed status
	ErrTxReverted = errors.New("transaction reverted")
)
