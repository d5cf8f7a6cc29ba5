package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelq/core/allocation"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/infra/store/memory"
)

const fixture = `stations:
  - reg_no: S1
    stock:
      Petrol 92 Octane: 6600
      auto diesel: 3300
  - reg_no: S2
    stock:
      Kerosene: 500
quotas:
  - subject: CAB-1234
    allowances:
      Petrol 92 Octane: 20
`

func TestLoadAndApply(t *testing.T) {
	allocation.ResetMetrics(nil)
	f, err := Load(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, f.Stations, 2)

	e, err := allocation.NewEngine(memory.New(), allocation.Config{}, nil, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	sum, err := f.Apply(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, Summary{StationsRegistered: 3, QuotasSet: 1}, sum)

	s, err := e.GetStock(ctx, "S1", model.AutoDiesel)
	require.NoError(t, err)
	assert.Equal(t, 3300.0, s.CurrentAmount)
	q, err := e.GetQuota(ctx, "CAB-1234", model.Petrol92)
	require.NoError(t, err)
	assert.Equal(t, 20.0, q.AllowedAmount)

	_, err = e.RefillStation(ctx, "S2", model.Kerosene, 100)
	require.NoError(t, err)
	sum, err = f.Apply(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, Summary{StationsSkipped: 3, QuotasSet: 1}, sum)
	s, err = e.GetStock(ctx, "S2", model.Kerosene)
	require.NoError(t, err)
	assert.Equal(t, 600.0, s.CurrentAmount, "reapplying must not reset stock")
}

func TestLoadRejectsBadFixture(t *testing.T) {
	cases := map[string]string{
		"unknown fuel":   "stations:\n  - reg_no: S1\n    stock:\n      hydrogen: 10\n",
		"negative stock": "stations:\n  - reg_no: S1\n    stock:\n      Kerosene: -1\n",
		"missing reg_no": "stations:\n  - stock:\n      Kerosene: 1\n",
		"empty subject":  "quotas:\n  - allowances:\n      Kerosene: 1\n",
	}
	for name, doc := range cases {
		_, err := Load(strings.NewReader(doc))
		assert.ErrorIs(t, err, model.ErrValidation, name)
	}
	_, err := Load(strings.NewReader("stations:\n  - reg_no: S1\n    colour: red\n"))
	assert.Error(t, err, "unknown fields must be rejected")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CAB-1234", f.Quotas[0].Subject)

	empty, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Stations)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
