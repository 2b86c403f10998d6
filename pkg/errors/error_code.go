package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeCanceled ErrorCode = 2

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInsufficientData     ErrorCode = 102
	ErrCodeInvalidDirection     ErrorCode = 103
	ErrCodeInvalidVolume        ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeInvalidVersion       ErrorCode = 106

	// Basket errors (200-299)
	ErrCodeBasketState    ErrorCode = 200
	ErrCodeBasketNotOpen  ErrorCode = 201
	ErrCodeBasketOpen     ErrorCode = 202
	ErrCodeBasketSyncFail ErrorCode = 203

	// Signal errors (300-399)
	ErrCodeModelLoadFailed   ErrorCode = 300
	ErrCodeModelPredict      ErrorCode = 301
	ErrCodeFeatureMismatch   ErrorCode = 302
	ErrCodeVersionMismatch   ErrorCode = 303
	ErrCodeIndicatorFailed   ErrorCode = 304
	ErrCodeSignalUnavailable ErrorCode = 305

	// Market data errors (400-499)
	ErrCodeMarketDataFetchFailed ErrorCode = 400
	ErrCodeMarketDataParseFailed ErrorCode = 401
	ErrCodeMarketDataMissing     ErrorCode = 402
	ErrCodeReplayExhausted       ErrorCode = 403
	ErrCodeInvalidProvider       ErrorCode = 404

	// Broker errors (500-599)
	ErrCodeOrderFailed      ErrorCode = 500
	ErrCodeCloseFailed      ErrorCode = 501
	ErrCodePositionNotFound ErrorCode = 502
	ErrCodeAccountFailed    ErrorCode = 503
	ErrCodeBrokerNotReady   ErrorCode = 504

	// Risk errors (600-699)
	ErrCodeRiskRejected ErrorCode = 600

	// Storage errors (700-799)
	ErrCodeWriterNotReady ErrorCode = 700
	ErrCodeWriteFailed    ErrorCode = 701
	ErrCodeQueryFailed    ErrorCode = 702
	ErrCodeArchiveFailed  ErrorCode = 703

	// Engine errors (800-899)
	ErrCodeEngineNotInitialized ErrorCode = 800
	ErrCodeCallbackFailed       ErrorCode = 801
)
