package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bargain-hub/bargain-hub/internal/domain/negotiation"
)

func TestProductSessionsRequirePrincipal(t *testing.T) {
	sess := negotiation.NewSession(uuid.New(), uuid.New(), uuid.New(), 100, "trace")
	srv := streamTestServer(t, &fixedLedger{session: sess})

	req := httptest.NewRequest("GET", "/v1/products/"+sess.ProductID.String()+"/sessions", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, 401, rec.Code)
}

func TestHealthIsPublic(t *testing.T) {
	sess := negotiation.NewSession(uuid.New(), uuid.New(), uuid.New(), 100, "trace")
	srv := streamTestServer(t, &fixedLedger{session: sess})

	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
