package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name      string
		base      int64
		headcount int
		surcharge int64
		want      int64
		wantErr   error
	}{
		{name: "base and surcharge for two", base: 1_000_000, headcount: 2, surcharge: 100_000, want: 2_200_000},
		{name: "no transport", base: 750_000, headcount: 3, want: 2_250_000},
		{name: "free tour", base: 0, headcount: 4, want: 0},
		{name: "zero headcount", base: 100, headcount: 0, wantErr: model.ErrInvalidHeadcount},
		{name: "negative headcount", base: 100, headcount: -1, wantErr: model.ErrInvalidHeadcount},
		{name: "negative surcharge", base: 100, headcount: 1, surcharge: -5, wantErr: model.ErrInvalidPrice},
		{name: "overflow", base: math.MaxInt64 / 2, headcount: 3, wantErr: model.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTotal(tt.base, tt.headcount, tt.surcharge)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
