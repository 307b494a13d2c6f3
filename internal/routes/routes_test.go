package routes

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pulmocare-server/internal/config"
)

// The consultation surface clients are written against; the method and path
// shapes are part of the API contract.
func TestSetupRoutesConsultationSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{Environment: "test"}

	SetupRoutes(router, nil, cfg, zerolog.Nop())

	want := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/consultations/availability/:doctorId"},
		{"POST", "/api/v1/consultations"},
		{"GET", "/api/v1/consultations"},
		{"GET", "/api/v1/consultations/:id"},
		{"PUT", "/api/v1/consultations/:id/status"},
		{"POST", "/api/v1/consultations/:id/start-video"},
		{"POST", "/api/v1/consultations/:id/end-video"},
		{"PUT", "/api/v1/consultations/:id/notes"},
	}

	registered := map[string]bool{}
	for _, route := range router.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, w := range want {
		if !registered[w.method+" "+w.path] {
			t.Errorf("route %s %s not registered", w.method, w.path)
		}
	}
}
