// Package metadatatest provides a parsed sample service for tests of the
// packages built on top of the metadata accessor.
package metadatatest

import (
	_ "embed"
	"testing"

	"github.com/zmcp/odata-filter-restrictions/internal/metadata"
)

// SalesV4 is an OData v4 sales service with orders, items, a parameterized
// analytical entity and a containment navigation.
//
//go:embed sales_v4.xml
var SalesV4 []byte

// Sales returns the parsed SalesV4 service, failing the test on parse errors.
func Sales(tb testing.TB) *metadata.Model {
	tb.Helper()
	model, err := metadata.Load(SalesV4, "https://example.com/sales/")
	if err != nil {
		tb.Fatalf("failed to load sales metadata: %v", err)
	}
	return model
}
