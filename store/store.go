package store

import (
	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/otp"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Store is the aggregate persistence interface. A single backend
// implements every subsystem's contract plus the lifecycle methods.
type Store interface {
	workflow.Store
	otp.Store
	posauth.Storer
}
