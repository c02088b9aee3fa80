package health

import (
	"encoding/json"
	"net/http"

	"github.com/pokt-network/poktroll/pkg/polylog"
)

// The status of the health check component.
type healthCheckStatus string

const (
	// statusReady indicates that all components are ready
	statusReady healthCheckStatus = "ready"
	// statusNotReady indicates that one or more components are not healthy,
	// e.g. an endpoint pool that has signaled exhaustion.
	statusNotReady healthCheckStatus = "not_ready"
)

type (
	// health.Checker stores all components whose health needs to be checked
	// for the process to be considered ready to serve work.
	Checker struct {
		Logger     polylog.Logger
		Components []Check
	}

	// health.Check is an interface that must be implemented by components
	// that need to report their health status
	Check interface {
		Name() string // Name returns the name of the component being checked.
		// IsAlive returns true if the component is healthy, otherwise false.
		IsAlive() bool
	}
)

// healthCheckJSON is the JSON structure of the response body returned by the
// `/healthz` endpoint along with the status code.
type healthCheckJSON struct {
	// Status is either "ready" or "not_ready".
	Status healthCheckStatus `json:"status"`
	// ReadyStates is a map of component names to their ready status
	ReadyStates map[string]bool `json:"readyStates,omitempty"`
}

// HealthzHandler returns the health status of the process as a JSON
// response: 200 OK when all components are alive, 503 Service Unavailable
// otherwise.
func (c *Checker) HealthzHandler(w http.ResponseWriter, req *http.Request) {
	readyStates := c.getComponentReadyStates()
	status := getStatus(readyStates)

	responseBytes, err := json.Marshal(healthCheckJSON{
		Status:      status,
		ReadyStates: readyStates,
	})
	if err != nil {
		c.Logger.Error().Err(err).Msg("error marshaling health check response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if status == statusReady {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if _, err := w.Write(responseBytes); err != nil {
		c.Logger.Error().Msgf("error writing health check response: %s", err.Error())
	}
}

func (c *Checker) getComponentReadyStates() map[string]bool {
	readyStates := make(map[string]bool, len(c.Components))
	for _, component := range c.Components {
		readyStates[component.Name()] = component.IsAlive()
	}
	return readyStates
}

func getStatus(readyStates map[string]bool) healthCheckStatus {
	for _, ready := range readyStates {
		if !ready {
			return statusNotReady
		}
	}
	return statusReady
}
