package types

// ErrorKindHeader carries the class of a failed daemon request, so clients
// can map it back onto the store's sentinel errors.
const ErrorKindHeader = "X-Iris-Error"

// Error kinds sent in ErrorKindHeader.
const (
	ErrorKindNotFound      = "not-found"
	ErrorKindNoCalibration = "no-calibration"
	ErrorKindReadOnly      = "read-only"
	ErrorKindExists        = "exists"
)
