package host

import (
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "subcontract"

// Metrics collects Host statistics. Nil Metrics collect nothing.
type Metrics struct {
	invocations    *prometheus.CounterVec
	instantiations *prometheus.CounterVec
}

// NewMetrics constructs Metrics and registers them in the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "host",
			Name:      "invocations_total",
			Help:      "Number of top-level operations by resulting VM state",
		}, []string{"state"}),
		instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "host",
			Name:      "instantiations_total",
			Help:      "Number of unit instantiation attempts by outcome",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.instantiations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observeInvocation(st vmstate.State) {
	if m != nil {
		m.invocations.WithLabelValues(st.String()).Inc()
	}
}

func (m *Metrics) observeInstantiation(err error) {
	if m == nil {
		return
	}

	res := "success"
	if err != nil {
		res = "failure"
	}

	m.instantiations.WithLabelValues(res).Inc()
}
