// Package app provides the application composition layer.
//
// # Architecture Role
//
// The app package composes storage, services and actions into a running
// application. It is NOT a business logic layer: rules live in the action
// and service packages, and every outcome leaves those layers as a
// result.Result built by the action executor.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/user/        # User model and public profile
//	├── storage/            # Store interface and listing query
//	│   ├── memory/         # In-memory implementation
//	│   ├── postgres/       # PostgreSQL implementation and migrations
//	│   └── cache/          # Redis read-through decorator
//	├── services/users/     # User persistence rules
//	├── actions/users/      # User actions run through the executor
//	├── httpapi/            # HTTP routes, audit trail and form flow
//	├── jobs/               # Cron scheduled actions
//	├── metrics/            # Prometheus collectors
//	├── runtime/            # Process assembly from configuration
//	└── system/             # Lifecycle manager
//
// # Dependency Direction
//
//	cmd/appserver/
//	      │
//	      ▼
//	internal/app/runtime/
//	      │
//	      ├──► internal/app/httpapi/ ──► internal/middleware/
//	      │
//	      └──► internal/app/ (composition)
//	                  │
//	                  ├──► internal/app/actions/users/ ──► pkg/action, pkg/result
//	                  │
//	                  └──► internal/app/services/users/ ──► internal/app/storage/
//
// # Adding an Action
//
//  1. Implement action.Action[In] next to the existing user actions
//  2. Authorize with Base.authorize and validate with Base.validate
//  3. Return typed failures; the executor maps them to a Result
//  4. Add it to Set and expose it from internal/app/httpapi
package app
