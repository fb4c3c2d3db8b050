package document_test

import (
	"testing"

	"mc3e/internal/document"
	"mc3e/internal/document/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) document.Store { return document.NewMemoryStore() })
}
