package uid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TableDriven(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "uuidv7", opts: Options{Strategy: StrategyUUIDv7}},
		{name: "snowflake", opts: Options{Strategy: StrategySnowflake, NodeID: 1}},
		{name: "snowflake bad node", opts: Options{Strategy: StrategySnowflake, NodeID: 99999}, wantErr: true},
		{name: "unknown strategy", opts: Options{Strategy: "coinflip"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := New(tc.opts)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, g)

			id, err := g.Generate(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, id)
		})
	}
}

func TestGenerate_Unique(t *testing.T) {
	for _, strategy := range []Strategy{StrategyUUIDv7, StrategySnowflake} {
		g, err := New(Options{Strategy: strategy, NodeID: 2})
		require.NoError(t, err)

		seen := make(map[string]struct{})
		for i := 0; i < 200; i++ {
			id, err := g.Generate(context.Background())
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %s from %s", id, strategy)
			seen[id] = struct{}{}
		}
	}
}
