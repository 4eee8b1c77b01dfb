package signin

import (
	"crypto/subtle"
	"time"
)

// Status is the outcome class of a verify run.
type Status string

const (
	StatusVerified Status = "verified"
	StatusInvalid  Status = "invalid"
	StatusExpired  Status = "expired"
)

// Outcome messages of the verify workflow.
const (
	MsgInvalidData = "Invalid OTP data"
	MsgExpired     = "OTP expired or not found"
	MsgInvalidCode = "Invalid OTP"
	MsgVerified    = "OTP verified successfully"
)

// VerifyInput starts a verify run. Reference is the code that was issued;
// ExpiresAt, when set, bounds its validity.
type VerifyInput struct {
	Email     string     `json:"email"`
	Code      string     `json:"code"`
	Reference string     `json:"reference"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// VerifyResult is the terminal outcome of a verify run.
type VerifyResult struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Verified reports whether the candidate code was accepted.
func (r VerifyResult) Verified() bool { return r.Status == StatusVerified }

// Verify checks a candidate code against the reference at now. It never
// fails; malformed input is an invalid outcome.
func Verify(in VerifyInput, now time.Time) VerifyResult {
	if in.Code == "" || in.Reference == "" {
		return VerifyResult{Status: StatusInvalid, Message: MsgInvalidData}
	}
	if in.ExpiresAt != nil && !now.Before(*in.ExpiresAt) {
		return VerifyResult{Status: StatusExpired, Message: MsgExpired}
	}
	if subtle.ConstantTimeCompare([]byte(in.Code), []byte(in.Reference)) != 1 {
		return VerifyResult{Status: StatusInvalid, Message: MsgInvalidCode}
	}
	return VerifyResult{Status: StatusVerified, Message: MsgVerified}
}
