package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintMapOrderIndependence(t *testing.T) {
	first := map[string][]float64{}
	first["AAA"] = []float64{0.01, 0.02}
	first["BBB"] = []float64{0.03, 0.04}

	second := map[string][]float64{}
	second["BBB"] = []float64{0.03, 0.04}
	second["AAA"] = []float64{0.01, 0.02}

	fp1, err := Fingerprint("frontier", first)
	require.NoError(t, err)
	fp2, err := Fingerprint("frontier", second)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2, "map insertion order must not affect the fingerprint")
}

func TestFingerprintSliceOrderDependence(t *testing.T) {
	fp1, err := Fingerprint("var", []float64{0.01, 0.02})
	require.NoError(t, err)
	fp2, err := Fingerprint("var", []float64{0.02, 0.01})
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2, "series order is meaningful and must change the fingerprint")
}

func TestFingerprintOperationScoped(t *testing.T) {
	params := []float64{0.01, 0.02}
	fp1, err := Fingerprint("var", params)
	require.NoError(t, err)
	fp2, err := Fingerprint("cvar", params)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprintDeterministic(t *testing.T) {
	params := struct {
		Returns    []float64 `json:"returns"`
		Confidence float64   `json:"confidence"`
	}{[]float64{0.01, -0.02, 0.03}, 0.95}

	fp1, err := Fingerprint("var", params)
	require.NoError(t, err)
	fp2, err := Fingerprint("var", params)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintUnmarshalableParams(t *testing.T) {
	_, err := Fingerprint("var", func() {})
	require.Error(t, err)
}
