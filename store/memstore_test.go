package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scidms/dms/dmserr"
)

func newTestStore(t *testing.T) *MemStore {
	s, err := NewMemStore([]string{"Beam", "MaterialRecord"})
	require.NoError(t, err)
	return s
}

func TestInsertAndFindOne(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertOne("Beam", map[string]interface{}{"length": 2.5})
	require.NoError(t, err)
	require.Len(t, id, 24)

	got, err := s.FindOneByID("Beam", id)
	require.NoError(t, err)
	require.Equal(t, 2.5, got["length"])
}

func TestFindOneByIDUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindOneByID("Beam", "doesnotexist00000000000")
	require.Error(t, err)
	derr, ok := dmserr.As(err)
	require.True(t, ok)
	require.Equal(t, dmserr.UnknownId, derr.Kind)
}

func TestUpdateOneMutatesInPlace(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertOne("Beam", map[string]interface{}{"length": 2.5})
	require.NoError(t, err)

	err = s.UpdateOne("Beam", id, func(data map[string]interface{}) error {
		data["length"] = 3.0
		return nil
	})
	require.NoError(t, err)

	got, err := s.FindOneByID("Beam", id)
	require.NoError(t, err)
	require.Equal(t, 3.0, got["length"])
}

func TestFindOneByIDReturnsCopyNotAlias(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertOne("Beam", map[string]interface{}{"length": 2.5})
	require.NoError(t, err)

	got, err := s.FindOneByID("Beam", id)
	require.NoError(t, err)
	got["length"] = 999.0

	got2, err := s.FindOneByID("Beam", id)
	require.NoError(t, err)
	require.Equal(t, 2.5, got2["length"])
}

func TestIterateCollection(t *testing.T) {
	s := newTestStore(t)
	id1, _ := s.InsertOne("Beam", map[string]interface{}{"length": 1.0})
	id2, _ := s.InsertOne("Beam", map[string]interface{}{"length": 2.0})

	ids, err := s.IterateCollection("Beam")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{id1, id2}, ids)
}

func TestRebuildResetsData(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertOne("Beam", map[string]interface{}{"length": 1.0})
	require.NoError(t, err)

	require.NoError(t, s.Rebuild([]string{"Beam", "CrossSection"}))
	ids, err := s.IterateCollection("Beam")
	require.NoError(t, err)
	require.Empty(t, ids)
	require.ElementsMatch(t, []string{"Beam", "CrossSection"}, s.Collections())
}
