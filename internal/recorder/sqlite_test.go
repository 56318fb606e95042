package recorder

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"YieldRouter/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder_RecordsHarvest(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	rep := &model.HarvestReport{
		Kind:     model.KindHarvest,
		Strategy: "StrategyCurveVault",
		Return: model.Return{
			Profit:      big.NewInt(499),
			Loss:        new(big.Int),
			DebtPayment: new(big.Int),
		},
		DebtBefore:      big.NewInt(5000),
		DebtAfter:       big.NewInt(5000),
		DebtOutstanding: new(big.Int),
		Position: model.PositionSnapshot{
			Idle:        new(big.Int),
			Shares:      big.NewInt(4546),
			TotalAssets: big.NewInt(5000),
		},
		At: time.Unix(1_700_000_000, 0),
	}
	require.NoError(t, r.RecordHarvest(rep))

	var kind, profit, pps string
	var ts int64
	row := r.db.QueryRow(`SELECT timestamp, kind, profit, price_per_share FROM harvests`)
	require.NoError(t, row.Scan(&ts, &kind, &profit, &pps))
	assert.Equal(t, int64(1_700_000_000), ts)
	assert.Equal(t, "HARVEST", kind)
	assert.Equal(t, "499", profit)
	assert.Equal(t, "0", pps)
}

func TestSQLiteRecorder_RecordsParamsAndFailures(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordParamChange(&ParamEvent{Strategy: "s", Name: "max_loss_bps", OldBps: 100, NewBps: 30, Caller: "0xabc"}))
	require.NoError(t, r.RecordFailure(&FailureEvent{Strategy: "s", Kind: model.KindTend, Error: "slippage exceeded"}))

	var newBps int64
	require.NoError(t, r.db.QueryRow(`SELECT new_bps FROM param_changes WHERE name = 'max_loss_bps'`).Scan(&newBps))
	assert.Equal(t, int64(30), newBps)

	var count int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM failures`).Scan(&count))
	assert.Equal(t, 1, count)
}
