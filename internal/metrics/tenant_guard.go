package metrics

import "communityos/internal/tenantdb"

// TenantGuardObserver counts tenant guard decisions.
type TenantGuardObserver struct{}

func (TenantGuardObserver) ObserveDenied(operation, reason string) {
	TenantGuardDenied.WithLabelValues(operation, reason).Inc()
}

func (TenantGuardObserver) ObserveBypass(operation string) {
	TenantGuardBypass.WithLabelValues(operation).Inc()
}

var _ tenantdb.Observer = TenantGuardObserver{}
