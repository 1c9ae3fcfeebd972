package tracking

import (
	"testing"
	"time"

	"field-visit-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePosition(t *testing.T) {
	got, err := decodePosition([]byte(`{"latitude":33.45,"longitude":-112.07,"accuracy":8.5,"timestamp":"2024-01-15T09:00:00-07:00"}`))
	require.NoError(t, err)
	assert.Equal(t, 33.45, got.Latitude)
	assert.Equal(t, -112.07, got.Longitude)
	require.NotNil(t, got.Accuracy)
	assert.Equal(t, 8.5, *got.Accuracy)
	assert.Equal(t, time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC), got.Timestamp)

	got, err = decodePosition([]byte(`{"latitude":0,"longitude":0}`))
	require.NoError(t, err)
	assert.True(t, got.Timestamp.IsZero())
	assert.Nil(t, got.Accuracy)
}

func TestDecodePositionErrors(t *testing.T) {
	_, err := decodePosition([]byte(`{"latitude":1}`))
	assert.ErrorContains(t, err, "required")

	_, err = decodePosition([]byte(`not json`))
	assert.Error(t, err)

	tests := []struct {
		kind string
		want domain.PositioningErrorKind
	}{
		{"permission-denied", domain.PositionPermissionDenied},
		{"timeout", domain.PositionTimeout},
		{"position-unavailable", domain.PositionUnavailable},
		{"gremlins", domain.PositionUnavailable},
	}
	for _, tt := range tests {
		_, err := decodePosition([]byte(`{"error":{"kind":"` + tt.kind + `","message":"no fix"}}`))
		var pe *domain.PositioningError
		require.ErrorAs(t, err, &pe, tt.kind)
		assert.Equal(t, tt.want, pe.Kind)
		assert.Equal(t, "no fix", pe.Message)
	}
}
