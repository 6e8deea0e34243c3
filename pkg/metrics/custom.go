package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investex",
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"service", "method", "reason"},
	)

	SyncPassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investex",
			Name:      "deposit_sync_pass_total",
			Help:      "Total number of deposit sync passes.",
		},
		[]string{"result"}, // ok / unauthorized / no_wallet / upstream / internal
	)

	DepositCreditedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "investex",
			Name:      "deposit_credited_total",
			Help:      "Total number of on-chain transfers credited to the ledger.",
		},
	)

	// 游标会越过入账失败的转账 (见 DESIGN.md)，这里必须可观测
	DepositCreditFailTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "investex",
			Name:      "deposit_credit_fail_total",
			Help:      "Total number of per-transfer credit failures skipped by the cursor.",
		},
	)
)

func MustRegister() {
	prometheus.MustRegister(RateLimitBlockTotal, SyncPassTotal, DepositCreditedTotal, DepositCreditFailTotal)
}
