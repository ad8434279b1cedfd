// Package mocks provides generated test doubles for the auth ports.
//
// The mocks are generated with go.uber.org/mock (gomock). To regenerate
// after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mocks for the session store and user directory ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ports_mock.go github.com/openlecture/portal/internal/ports SessionStore,UserDirectory
