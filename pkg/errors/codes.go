package errors

type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeValidation      Code = "VALIDATION"
	CodeNotFound        Code = "NOT_FOUND"
	CodeStorage         Code = "STORAGE"
	CodeMediaAccess     Code = "MEDIA_ACCESS"
	CodeExternalService Code = "EXTERNAL_SERVICE"
	CodeInternal        Code = "INTERNAL"
)
