package errors

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
)

func TestMapErrorToHTTP(t *testing.T) {
	m := NewMapper(zerolog.Nop())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, fasthttp.StatusOK},
		{"no available account", domain.ErrNoAvailableAccount, fasthttp.StatusServiceUnavailable},
		{"account not found", domain.ErrAccountNotFound, fasthttp.StatusNotFound},
		{"lock ownership", domain.ErrLockOwnership, fasthttp.StatusConflict},
		{"account disabled", domain.ErrAccountDisabled, fasthttp.StatusConflict},
		{"infrastructure", fmt.Errorf("acquire lock failed: %w", domain.ErrInfrastructure), fasthttp.StatusServiceUnavailable},
		{"validation", NewValidationError("bad input"), fasthttp.StatusBadRequest},
		{"not found typed", NewNotFoundError("missing"), fasthttp.StatusNotFound},
		{"conflict typed", NewConflictError("taken"), fasthttp.StatusConflict},
		{"unknown", fmt.Errorf("boom"), fasthttp.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := m.MapErrorToHTTP(tt.err)
			if got != tt.want {
				t.Errorf("MapErrorToHTTP(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
