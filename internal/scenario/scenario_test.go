package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityVault/internal/model"
	"liquidityVault/internal/v3math"
)

type memorySink struct {
	events []model.VaultEvent
	states []model.VaultState
}

func (m *memorySink) PutEvents(_ context.Context, events []model.VaultEvent) error {
	m.events = append(m.events, events...)
	return nil
}

func (m *memorySink) PutStates(_ context.Context, states []model.VaultState) error {
	m.states = append(m.states, states...)
	return nil
}

func (m *memorySink) names() []string {
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventName)
	}
	return out
}

func loadLifecycle(t *testing.T) Scenario {
	t.Helper()
	sc, err := Load(filepath.Join("testdata", "lifecycle.yaml"))
	require.NoError(t, err)
	return sc
}

func TestLoadAppliesDefaults(t *testing.T) {
	sc := loadLifecycle(t)

	require.Equal(t, "lifecycle", sc.Name)
	require.Equal(t, uint64(1_700_000_000), sc.Pool.Start)
	require.Equal(t, uint64(3600), sc.Pool.Warmup)
	require.Equal(t, v3math.Range{Lower: -600, Upper: 600}, sc.Vault.Range)
	require.Equal(t, uint16(1000), sc.Vault.Params.ManagerFeeBPS)
	require.Equal(t, uint16(200), sc.Vault.Params.RebalanceSlippageBPS)
	require.Len(t, sc.Steps, 11)

	params := sc.Steps[8]
	require.Equal(t, ActionParams, params.Action)
	require.NotNil(t, params.Params.ManagerFeeBPS)
	require.Equal(t, uint16(2000), *params.Params.ManagerFeeBPS)
	require.Nil(t, params.Params.OracleWindow)

	require.Equal(t, v3math.Range{Lower: -1200, Upper: 1200}, sc.Steps[10].Range)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown action": "name: x\nvault: {range: {lower: -60, upper: 60}}\nsteps: [{action: teleport}]\n",
		"no steps":       "name: x\nvault: {range: {lower: -60, upper: 60}}\n",
		"bad range":      "name: x\nvault: {range: {lower: -61, upper: 60}}\nsteps: [{action: advance}]\n",
		"no account":     "name: x\nvault: {range: {lower: -60, upper: 60}}\nsteps: [{action: deposit}]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	sc := loadLifecycle(t)
	sink := &memorySink{}

	res, err := NewRunner(sink, nil, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, VaultAddress(sc.Name), res.Vault)
	require.NotEqual(t, VaultAddress("other"), res.Vault)
	require.Len(t, res.States, len(sc.Steps))
	require.Equal(t, res.States, sink.states)
	require.Zero(t, res.Replayed)

	deposit := res.States[0]
	require.NotEqual(t, "0", deposit.Liquidity)
	require.Equal(t, deposit.Liquidity, deposit.TotalSupply)

	rebalanced := res.States[4]
	require.Equal(t, "rebalance", rebalanced.Action)
	require.NotEqual(t, res.States[3].Liquidity, rebalanced.Liquidity)
	require.NotEqual(t, "0", rebalanced.Manager0)

	// the rejected rebalance changes nothing
	rejected := res.States[5]
	require.Equal(t, rebalanced.Liquidity, rejected.Liquidity)
	require.Equal(t, rebalanced.Amount0, rejected.Amount0)

	require.Equal(t, "0", res.States[9].Manager0)
	require.Equal(t, "0", res.States[9].Manager1)

	final := res.States[len(res.States)-1]
	require.Equal(t, int32(-1200), final.TickLower)
	require.Equal(t, int32(1200), final.TickUpper)
	require.NotEqual(t, "0", final.Liquidity)

	names := sink.names()
	require.Equal(t, model.EventMinted, names[0])
	require.Equal(t, model.EventFeesEarned, names[1])
	require.Equal(t, model.EventRebalance, names[len(names)-1])
	require.Contains(t, names, model.EventBurned)
	require.Contains(t, names, model.EventParamsUpdated)
	require.Contains(t, names, model.EventManagerFeesWithdrawn)
}

func TestRunFailsOnUnexpectedOutcome(t *testing.T) {
	sc := loadLifecycle(t)
	sc.Steps = []Step{
		{Action: ActionDeposit, Account: "alice", Amount0: "1", Amount1: "1"},
		{Action: ActionAdvance, Seconds: 10, ExpectError: "anything"},
	}
	res, err := NewRunner(nil, nil, nil).Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrUnexpectedOutcome)
	require.Contains(t, err.Error(), "step 1 (advance)")
	require.Len(t, res.States, 1)

	sc.Steps = []Step{{Action: ActionDeposit, Account: "nobody", Shares: "1"}}
	_, err = NewRunner(nil, nil, nil).Run(context.Background(), sc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "step 0 (deposit)")
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	sc := loadLifecycle(t)
	fresh, err := NewRunner(nil, nil, nil).Run(ctx, sc)
	require.NoError(t, err)

	checkpoint := NewFileCheckpoint(filepath.Join(t.TempDir(), "state", "checkpoint.json"))
	_, ok, err := checkpoint.LoadStep(ctx, sc.Name)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, checkpoint.SaveStep(ctx, sc.Name, 5))

	sink := &memorySink{}
	res, err := NewRunner(sink, checkpoint, nil).Run(ctx, sc)
	require.NoError(t, err)
	require.Equal(t, 6, res.Replayed)
	require.Equal(t, fresh.States, res.States)

	require.Len(t, sink.states, len(sc.Steps)-6)
	require.Equal(t, 6, sink.states[0].Step)
	// alice's deposit was replayed silently; bob's is the first event
	require.Equal(t, model.EventMinted, sink.events[0].EventName)
	require.Equal(t, AddressOf("bob").Hex(), sink.events[0].Decoded.(model.MintedData).Caller)

	last, ok, err := checkpoint.LoadStep(ctx, sc.Name)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(sc.Steps)-1, last)
}

func TestFileCheckpointKeepsScenariosApart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	checkpoint := NewFileCheckpoint(path)
	require.NoError(t, checkpoint.SaveStep(ctx, "a", 3))
	require.NoError(t, checkpoint.SaveStep(ctx, "b", 7))

	step, ok, err := NewFileCheckpoint(path).LoadStep(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, step)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, _, err = checkpoint.LoadStep(ctx, "a")
	require.Error(t, err)
}
