package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/stretchr/testify/require"
)

type fakeCheck struct {
	name  string
	alive bool
}

func (f fakeCheck) Name() string  { return f.name }
func (f fakeCheck) IsAlive() bool { return f.alive }

func TestHealthzHandler(t *testing.T) {
	tests := []struct {
		name           string
		components     []Check
		expectedCode   int
		expectedStatus healthCheckStatus
	}{
		{
			name: "all components alive",
			components: []Check{
				fakeCheck{name: "endpoint-pool", alive: true},
				fakeCheck{name: "penalty-store", alive: true},
			},
			expectedCode:   http.StatusOK,
			expectedStatus: statusReady,
		},
		{
			name: "one component down",
			components: []Check{
				fakeCheck{name: "endpoint-pool", alive: false},
				fakeCheck{name: "penalty-store", alive: true},
			},
			expectedCode:   http.StatusServiceUnavailable,
			expectedStatus: statusNotReady,
		},
		{
			name:           "no components",
			components:     nil,
			expectedCode:   http.StatusOK,
			expectedStatus: statusReady,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checker := &Checker{
				Logger:     polyzero.NewLogger(),
				Components: tc.components,
			}

			recorder := httptest.NewRecorder()
			checker.HealthzHandler(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			require.Equal(t, tc.expectedCode, recorder.Code)

			var body healthCheckJSON
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			require.Equal(t, tc.expectedStatus, body.Status)
			require.Len(t, body.ReadyStates, len(tc.components))
		})
	}
}
