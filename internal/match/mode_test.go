package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchserver/internal/match"
)

func TestParseModes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []match.Mode
		wantErr bool
	}{
		{
			name:  "full table",
			input: "1v1:2,2v2:4,5v5:10",
			want: []match.Mode{
				{Name: "1v1", Players: 2},
				{Name: "2v2", Players: 4},
				{Name: "5v5", Players: 10},
			},
		},
		{
			name:  "whitespace tolerated",
			input: " 1v1:2 , 3v3:6 ",
			want: []match.Mode{
				{Name: "1v1", Players: 2},
				{Name: "3v3", Players: 6},
			},
		},
		{name: "missing count", input: "1v1", wantErr: true},
		{name: "empty name", input: ":2", wantErr: true},
		{name: "zero players", input: "1v1:0", wantErr: true},
		{name: "non-numeric count", input: "1v1:two", wantErr: true},
		{name: "duplicate mode", input: "1v1:2,1v1:2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := match.ParseModes(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
