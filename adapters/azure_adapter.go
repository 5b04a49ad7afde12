// azure_adapter.go
// ----------------
// This adapter integrates with Azure Resource Manager.
//
// ARM throttles per scope (subscription or tenant) and per operation kind. Remaining
// budgets are reported in headers such as
//
//	x-ms-ratelimit-remaining-subscription-reads
//	x-ms-ratelimit-remaining-subscription-writes
//	x-ms-ratelimit-remaining-tenant-reads
//
// A throttled call gets a 429 with Retry-After in seconds. The adapter tracks the reads
// budget of the subscription scope unless told otherwise. Credentials usually come from
// credentials.AzureServicePrincipal.
package adapters

import (
	"fmt"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

const (
	AzureBaseURL = "https://management.azure.com"

	AzureScopeSubscription = "subscription"
	AzureScopeTenant       = "tenant"
	AzureOperationReads    = "reads"
	AzureOperationWrites   = "writes"
	AzureOperationDeletes  = "deletes"
)

// AzureRemainingHeader names the budget header for a scope and operation kind.
func AzureRemainingHeader(scope, operation string) string {
	return fmt.Sprintf("x-ms-ratelimit-remaining-%s-%s", scope, operation)
}

func NewAzureAdapter(creds resilientbridge.CredentialSource, opts ...Option) *Adapter {
	limits := resilientbridge.DefaultRateLimitConfig()
	limits.LimitHeader = ""
	limits.ResetHeader = ""
	limits.RemainingHeader = AzureRemainingHeader(AzureScopeSubscription, AzureOperationReads)
	return newAdapter(AzureBaseURL, jsonHeaders(), limits, creds, opts)
}

// WithAzureBudget tracks a different remaining-budget header.
func WithAzureBudget(scope, operation string) Option {
	return WithRateLimit(func(c *resilientbridge.RateLimitConfig) {
		c.RemainingHeader = AzureRemainingHeader(scope, operation)
	})
}
