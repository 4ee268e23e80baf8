package scene

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleName = "S1A_IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_1A2B"

func TestParse(t *testing.T) {
	id, err := Parse(sampleName + ".zip")
	require.NoError(t, err)

	assert.Equal(t, sampleName, id.Name)
	assert.Equal(t, "S1A", id.Mission)
	assert.Equal(t, "IW", id.BeamMode)
	assert.Equal(t, "SLC", id.ProductType)
	assert.Equal(t, "", id.Resolution)
	assert.Equal(t, "1", id.ProcessingLevel)
	assert.Equal(t, "S", id.ProductClass)
	assert.Equal(t, "DV", id.Polarisation)
	assert.Equal(t, time.Date(2023, 6, 2, 3, 14, 15, 0, time.UTC), id.Start)
	assert.Equal(t, time.Date(2023, 6, 2, 3, 14, 42, 0, time.UTC), id.Stop)
	assert.Equal(t, 48812, id.AbsoluteOrbit)
	assert.Equal(t, "05DEAD", id.DataTake)
	assert.Equal(t, "1A2B", id.ProductID)
	assert.Equal(t, "20230602", id.Date().String())
	assert.Equal(t, []string{"VV", "VH"}, id.Polarisations())
}

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare name", sampleName},
		{"SAFE directory", sampleName + ".SAFE"},
		{"with directory", "/data/raw/" + sampleName + ".zip"},
		{"stripmap", "S1A_S3_SLC__1SSV_20230101T175012_20230101T175037_046583_05954D_8F2C"},
		{"grd high resolution", "S1B_IW_GRDH_1SDV_20210101T000000_20210101T000025_024960_02F873_ABCD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.NoError(t, err)
		})
	}

	grd := MustParse("S1B_IW_GRDH_1SDV_20210101T000000_20210101T000025_024960_02F873_ABCD")
	assert.Equal(t, "GRD", grd.ProductType)
	assert.Equal(t, "H", grd.Resolution)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "S1A_IW_SLC__1SDV_20230602"},
		{"subset artifact", "20230602_subset.dim"},
		{"wrong separator", "S1A-IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_1A2B"},
		{"other mission", "LC8_IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_1A2B"},
		{"bad start", "S1A_IW_SLC__1SDV_20231302T031415_20230602T031442_048812_05DEAD_1A2B"},
		{"stop before start", "S1A_IW_SLC__1SDV_20230602T031415_20230601T031442_048812_05DEAD_1A2B"},
		{"bad orbit", "S1A_IW_SLC__1SDV_20230602T031415_20230602T031442_0488X2_05DEAD_1A2B"},
		{"bad product id", "S1A_IW_SLC__1SDV_20230602T031415_20230602T031442_048812_05DEAD_ZZZZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedIdentifier), "got %v", err)
		})
	}
}

func TestPolarisations(t *testing.T) {
	tests := map[string][]string{
		"SH": {"HH"},
		"SV": {"VV"},
		"DH": {"HH", "HV"},
		"VH": {"VH"},
		"XX": nil,
	}
	for code, want := range tests {
		id := Identity{Polarisation: code}
		assert.Equal(t, want, id.Polarisations(), code)
	}
}
