package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadsOnce(t *testing.T) {
	f := &countingFetcher{data: []byte(sampleGeoJSON), delay: 20 * time.Millisecond}
	s := NewStore(f)

	var wg sync.WaitGroup
	sets := make([]*Dataset, 8)
	for i := range sets {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := s.Get(context.Background(), LevelDepartment)
			assert.NoError(t, err)
			sets[i] = ds
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.count(LevelDepartment))
	for _, ds := range sets {
		assert.Same(t, sets[0], ds)
	}

	ds := sets[0]
	assert.Equal(t, "shapeName", ds.Props().Department)
	assert.Equal(t, "antioquia", ds.Features()[0].Properties[PropCanonDept])

	s.Reload(LevelDepartment)
	again, err := s.Get(context.Background(), LevelDepartment)
	require.NoError(t, err)
	assert.NotSame(t, ds, again)
	assert.Equal(t, 2, f.count(LevelDepartment))
}

func TestStoreErrors(t *testing.T) {
	f := &countingFetcher{err: errors.New("boom")}
	s := NewStore(f)
	_, err := s.Get(context.Background(), LevelCity)
	require.Error(t, err)
	_, err = s.Get(context.Background(), LevelCity)
	require.Error(t, err)
	assert.Equal(t, 2, f.count(LevelCity), "failures are not cached")

	empty := NewStore(&countingFetcher{data: []byte(`{"type":"FeatureCollection","features":[]}`)})
	_, err = empty.Get(context.Background(), LevelCity)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = s.Get(context.Background(), Level("pais"))
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestStorePreload(t *testing.T) {
	f := &countingFetcher{data: []byte(sampleGeoJSON)}
	s := NewStore(f)
	require.NoError(t, s.Preload(context.Background(), LevelDepartment, LevelCity))
	assert.Equal(t, 1, f.count(LevelDepartment))
	assert.Equal(t, 1, f.count(LevelCity))

	_, err := s.Get(context.Background(), LevelCity)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(LevelCity))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" Ciudad ")
	require.NoError(t, err)
	assert.Equal(t, LevelCity, l)
	_, err = ParseLevel("region")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}
