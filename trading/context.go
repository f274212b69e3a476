/*
Package trading implements the order lifecycle and the purchase/sale/reversal
operations around the ledger.

PURPOSE:
  This is the only package that mutates ledger state. Every operation runs
  inside a single store transaction so the balance check and the writes that
  follow are linearizable per business (cash) and per item (stock), and no
  failure can leave partial state.

SEE ALSO:
  - operations.go: purchase/sale operations
  - reversal.go:   compensating operations
  - orders.go:     order state machine
*/
package trading

import "github.com/warp/trade-ledger/ledger"

// BusinessContext identifies the tenant an operation acts on behalf of.
// It is an explicit parameter on every call, never inferred from ambient
// session state. Actor is recorded for traceability only.
type BusinessContext struct {
	BusinessID ledger.BusinessID
	Actor      string
}

// NewBusinessContext builds a context for the given business.
func NewBusinessContext(businessID ledger.BusinessID) BusinessContext {
	return BusinessContext{BusinessID: businessID}
}
