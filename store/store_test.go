package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMemoryCreatesGenesis(t *testing.T) {
	st, created, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	require.True(t, created)

	var height int32
	err = st.View(func(tx *Tx) error {
		var err error
		height, err = tx.TipHeight()
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int32(0), height)
}

func TestOpenFileAttachesWithoutReinitializing(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ledger.db"

	st1, created, err := Open(path)
	require.NoError(t, err)
	require.True(t, created)
	genesisTime, err := st1.GenesisTime()
	require.NoError(t, err)
	require.NoError(t, st1.Close())

	st2, created, err := Open(path)
	require.NoError(t, err)
	defer st2.Close()
	require.False(t, created)

	reopenedTime, err := st2.GenesisTime()
	require.NoError(t, err)
	require.Equal(t, genesisTime, reopenedTime)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	st, _, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	sentinel := errors.New("boom")
	err = st.Update(func(tx *Tx) error {
		if setErr := tx.setMeta("scratch", "value"); setErr != nil {
			return setErr
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	err = st.View(func(tx *Tx) error {
		_, getErr := tx.getMeta("scratch")
		return getErr
	})
	require.Error(t, err, "rolled-back write must not be visible")
}

func TestGenesisBlockIsDeterministicForFixedTime(t *testing.T) {
	const fixedTime = int64(1700000000)

	rec1 := genesisBlockRecord(fixedTime)
	rec2 := genesisBlockRecord(fixedTime)
	require.Equal(t, rec1.BlockID, rec2.BlockID)
}
