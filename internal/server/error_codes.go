package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidSort     = 1005
	ErrCodeInvalidURL      = 1006
	ErrCodeMissingRequired = 1009
	ErrCodeInvalidManifest = 1011
	ErrCodeUndecodable     = 1015

	// Domain state (2xxx)
	ErrCodeBackgroundNotFound = 2001
	ErrCodeRouteNotFound      = 2002
	ErrCodeMethodNotAllowed   = 2003

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeQuotaExceeded     = 3004

	// Internal/system (4xxx)
	ErrCodeInternal           = 4001
	ErrCodeStoreFailure       = 4002
	ErrCodeExportFailed       = 4003
	ErrCodeImportFailed       = 4004
	ErrCodeNotImplemented     = 4005
	ErrCodeStorageUnavailable = 4006
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeBackgroundNotFound
	case 405:
		return ErrCodeMethodNotAllowed
	case 422:
		return ErrCodeUndecodable
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	case 503:
		return ErrCodeStorageUnavailable
	case 507:
		return ErrCodeQuotaExceeded
	default:
		return 0
	}
}
