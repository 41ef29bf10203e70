package httputil

// Machine-readable error codes returned alongside error messages so API
// clients can branch without parsing human-readable text.
const (
	CodeInvalidRequestBody     = "INVALID_REQUEST_BODY"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeUsernameTaken          = "USERNAME_TAKEN"
	CodeEmailTaken             = "EMAIL_TAKEN"
	CodeWeakPassword           = "WEAK_PASSWORD"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAccountLocked          = "ACCOUNT_LOCKED"
	CodeInvalidAuthHeader      = "INVALID_AUTH_HEADER"
	CodeMissingAuth            = "MISSING_AUTH"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeInvalidTokenUserID     = "INVALID_TOKEN_USER_ID"
	CodeRefreshTokenRequired   = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	CodeInvalidResetToken      = "INVALID_RESET_TOKEN"
	CodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	CodeForbidden              = "FORBIDDEN"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeInternalError          = "INTERNAL_ERROR"
)
