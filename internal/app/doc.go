// Package app composes the purchase tracking services into a running
// application.
//
// The layout follows a thin composition layer over domain packages:
//
//	internal/app/
//	├── application.go      # Wiring and lifecycle
//	├── domain/             # Pure domain logic
//	│   ├── document/       # Folio and date helpers
//	│   ├── purchase/       # Purchase models and backend payload decoding
//	│   └── stepper/        # Traceability reconciliation
//	├── storage/            # Store interface plus memory and postgres backends
//	├── services/           # purchases, tracking and sync services
//	├── upstream/           # Commerce backend client with token handling
//	├── httpapi/            # REST handlers
//	├── metrics/            # Prometheus collectors
//	└── system/             # Service lifecycle manager
//
// Services receive their stores through interfaces so tests run against the
// in-memory backend while production uses postgres.
package app
