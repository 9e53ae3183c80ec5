package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const ServiceName = "asistencia-api"

// buildInfo is a constant 1 gauge labelled with version and commit.
var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "asistencia_build_info",
		Help: "Asistencia API build information.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo records the running version. Init must have been called.
func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}
