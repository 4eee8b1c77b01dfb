package memory_test

import (
	"testing"

	"github.com/vndocker/pos-AI-community/store"
	"github.com/vndocker/pos-AI-community/store/memory"
	"github.com/vndocker/pos-AI-community/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
