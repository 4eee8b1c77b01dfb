package activity

import "fmt"

// Kind enumerates the activities known to the executor.
type Kind uint8

const (
	// VerifyBotToken checks a Turnstile token with Cloudflare.
	VerifyBotToken Kind = iota + 1
	// ValidateEmail checks the structure of an email address.
	ValidateEmail
	// GenerateCode draws a fresh 6-digit code.
	GenerateCode
	// DeliverCode emails the code to the user.
	DeliverCode

	kindEnd
)

var kindNames = [kindEnd]string{
	VerifyBotToken: "verify_bot_token",
	ValidateEmail:  "validate_email",
	GenerateCode:   "generate_code",
	DeliverCode:    "deliver_code",
}

// String returns the wire name used for checkpoints, metrics and remote
// activity registration.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return k > 0 && k < kindEnd }

// Kinds returns every declared kind in execution order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindEnd-1)
	for k := VerifyBotToken; k < kindEnd; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("activity: unknown kind %q", s)
}
