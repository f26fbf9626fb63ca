// Package mocks provides mock implementations for testing.
//
// Codegen mocks use go.uber.org/mock (gomock); hand-written doubles cover the
// ports where deterministic canned behavior is simpler than expectations.
//
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=message_service_mock.go github.com/faqdesk/faqdesk/internal/ports MessageService

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=account_service_mock.go github.com/faqdesk/faqdesk/internal/ports AccountService
