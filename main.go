// =============================================================================
// posledger - Main Entry Point
// =============================================================================
//
// posledger pushes the sales of a uniCenta point-of-sale database into a
// Moneybird administration.
//
// USAGE:
//   posledger sync      - Reconcile the sales of a window with the ledger
//   posledger check     - Build and validate sales only
//   posledger version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/                : Cobra command definitions and wiring
//   - internal/config     : YAML configuration, environment secrets
//   - internal/source     : point-of-sale database reader (gorm)
//   - internal/sale       : canonical sale builder
//   - internal/validation : sale validation rules
//   - internal/ledger     : ledger REST client
//   - internal/resolve    : ledger name and tax rate lookups
//   - internal/reconcile  : idempotent synchronizers and the run engine
//   - internal/snapshot   : collection snapshot cache (file, Redis)
//   - internal/report     : XLSX and text run reports
//   - internal/logging    : logrus setup
//   - pkg/utils           : file helpers
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/posledger/cmd"
)

func main() {
	cmd.Execute()
}
