package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVersionRepo is an in-memory schema version counter.
type fakeVersionRepo struct {
	version    int
	versionErr error
}

func (r *fakeVersionRepo) Version(_ context.Context) (int, error) {
	if r.versionErr != nil {
		return 0, r.versionErr
	}
	return r.version, nil
}

func (r *fakeVersionRepo) Increment(_ context.Context) (int, error) {
	r.version++
	return r.version, nil
}

func countingMigrations(applied *[]string, fail map[string]error) []Migration {
	mk := func(name string) Migration {
		return Migration{
			Name: name,
			Apply: func(_ context.Context) error {
				if err := fail[name]; err != nil {
					return err
				}
				*applied = append(*applied, name)
				return nil
			},
		}
	}
	return []Migration{mk("first"), mk("second"), mk("third")}
}

func TestRunMigrations(t *testing.T) {
	ctx := context.Background()

	t.Run("FreshDatabaseAppliesAll", func(t *testing.T) {
		versions := &fakeVersionRepo{}
		var applied []string

		err := RunMigrations(ctx, versions, countingMigrations(&applied, nil))

		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third"}, applied)
		assert.Equal(t, 3, versions.version)
	})

	t.Run("ResumesFromStoredVersion", func(t *testing.T) {
		versions := &fakeVersionRepo{version: 2}
		var applied []string

		err := RunMigrations(ctx, versions, countingMigrations(&applied, nil))

		require.NoError(t, err)
		assert.Equal(t, []string{"third"}, applied)
		assert.Equal(t, 3, versions.version)
	})

	t.Run("FullyMigratedAppliesNothing", func(t *testing.T) {
		versions := &fakeVersionRepo{version: 3}
		var applied []string

		err := RunMigrations(ctx, versions, countingMigrations(&applied, nil))

		require.NoError(t, err)
		assert.Empty(t, applied)
		assert.Equal(t, 3, versions.version)
	})

	t.Run("FailureStopsAtLastGoodVersion", func(t *testing.T) {
		versions := &fakeVersionRepo{}
		var applied []string
		boom := errors.New("index build failed")

		err := RunMigrations(ctx, versions, countingMigrations(&applied, map[string]error{"second": boom}))

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "second")
		// The version records the last successful step so a restart resumes there.
		assert.Equal(t, []string{"first"}, applied)
		assert.Equal(t, 1, versions.version)
	})

	t.Run("VersionReadFailure", func(t *testing.T) {
		boom := errors.New("connection reset")
		versions := &fakeVersionRepo{versionErr: boom}

		err := RunMigrations(ctx, versions, nil)

		assert.ErrorIs(t, err, boom)
	})
}
