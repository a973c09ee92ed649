package document

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

const docTestSchema = `{
	"Beam": {
		"cs": {"dtype": "f", "link": "CrossSection"},
		"length": {"dtype": "f", "unit": "m", "shape": []},
		"materials": {"dtype": "f", "link": "MaterialRecord", "shape": [-1]}
	},
	"CrossSection": {
		"rve": {"dtype": "f", "link": "ConcreteRVE"}
	},
	"ConcreteRVE": {
		"origin": {"dtype": "f", "unit": "m", "shape": [3]}
	},
	"MaterialRecord": {
		"name": {"dtype": "str"}
	},
	"Pair": {
		"a": {"dtype": "f", "link": "MaterialRecord"},
		"b": {"dtype": "f", "link": "MaterialRecord"}
	},
	"Holder": {
		"p": {"dtype": "f", "link": "Pair"}
	}
}`

func newFixtures(t *testing.T) (*schema.Schema, store.Store) {
	sch, err := schema.Parse([]byte(docTestSchema))
	require.NoError(t, err)
	st, err := store.NewMemStore([]string{"Beam", "CrossSection", "ConcreteRVE", "MaterialRecord", "Pair", "Holder"})
	require.NoError(t, err)
	return sch, st
}

func TestPostAndGetRoundTripWithUnitConversion(t *testing.T) {
	sch, st := newFixtures(t)

	beamID, err := Post(sch, st, "Beam", map[string]interface{}{
		"length": map[string]interface{}{"value": 2500.0, "unit": "mm"},
		"cs": map[string]interface{}{
			"rve": map[string]interface{}{
				"origin": map[string]interface{}{"value": []interface{}{1.0, 2.0, 3.0}, "unit": "m"},
			},
		},
		"materials": []interface{}{
			map[string]interface{}{"name": "steel"},
			map[string]interface{}{"name": "concrete"},
		},
	})
	require.NoError(t, err)

	got, err := Get(sch, st, "Beam", beamID, GetOptions{MaxLevel: -1, Meta: true})
	require.NoError(t, err)
	obj := got.(map[string]interface{})

	length := obj["length"].(map[string]interface{})
	require.InDelta(t, 2.5, length["value"], 1e-9)
	require.Equal(t, "m", length["unit"])

	meta := obj["_meta"].(map[string]interface{})
	require.Equal(t, beamID, meta["id"])
	require.Equal(t, "Beam", meta["type"])

	materials := obj["materials"].([]interface{})
	require.Len(t, materials, 2)
	mat0 := materials[0].(map[string]interface{})
	require.Equal(t, "steel", mat0["name"])
}

func TestPostWithExistingIDReference(t *testing.T) {
	sch, st := newFixtures(t)

	matID, err := st.InsertOne("MaterialRecord", map[string]interface{}{"name": "titanium"})
	require.NoError(t, err)

	beamID, err := Post(sch, st, "Beam", map[string]interface{}{
		"materials": []interface{}{matID},
	})
	require.NoError(t, err)

	got, err := Get(sch, st, "Beam", beamID, GetOptions{MaxLevel: -1, Meta: false})
	require.NoError(t, err)
	obj := got.(map[string]interface{})
	materials := obj["materials"].([]interface{})
	require.Equal(t, "titanium", materials[0].(map[string]interface{})["name"])
}

func TestPostWithRelativePathReference(t *testing.T) {
	sch, st := newFixtures(t)

	pairID, err := Post(sch, st, "Pair", map[string]interface{}{
		"a": map[string]interface{}{"name": "shared"},
		"b": ".a",
	})
	require.NoError(t, err)

	got, err := Get(sch, st, "Pair", pairID, GetOptions{MaxLevel: -1, Meta: false})
	require.NoError(t, err)
	obj := got.(map[string]interface{})
	a := obj["a"].(map[string]interface{})
	b := obj["b"].(map[string]interface{})
	require.Equal(t, a["name"], b["name"])
}

func TestPostWithRelativePathReferenceAtNonRootDepth(t *testing.T) {
	sch, st := newFixtures(t)

	// "p" is a nested Pair object, not the root: a one-dot reference in one
	// of its link fields must resolve within p ("p.a"), not at the root.
	holderID, err := Post(sch, st, "Holder", map[string]interface{}{
		"p": map[string]interface{}{
			"a": map[string]interface{}{"name": "shared"},
			"b": ".a",
		},
	})
	require.NoError(t, err)

	got, err := Get(sch, st, "Holder", holderID, GetOptions{MaxLevel: -1, Meta: false})
	require.NoError(t, err)
	obj := got.(map[string]interface{})
	p := obj["p"].(map[string]interface{})
	a := p["a"].(map[string]interface{})
	b := p["b"].(map[string]interface{})
	require.Equal(t, a["name"], b["name"])
}

func TestGetMaxLevelOmitsLinksPastDepth(t *testing.T) {
	sch, st := newFixtures(t)

	beamID, err := Post(sch, st, "Beam", map[string]interface{}{
		"length": map[string]interface{}{"value": 1.0, "unit": "m"},
		"cs": map[string]interface{}{
			"rve": map[string]interface{}{
				"origin": map[string]interface{}{"value": []interface{}{0.0, 0.0, 0.0}, "unit": "m"},
			},
		},
	})
	require.NoError(t, err)

	got, err := Get(sch, st, "Beam", beamID, GetOptions{MaxLevel: 0, Meta: false})
	require.NoError(t, err)
	obj := got.(map[string]interface{})
	_, hasCS := obj["cs"]
	require.False(t, hasCS)
	require.Contains(t, obj, "length")
}

func TestGetTrackingReplacesRepeatedVisitWithRelativePath(t *testing.T) {
	sch, st := newFixtures(t)

	pairID, err := Post(sch, st, "Pair", map[string]interface{}{
		"a": map[string]interface{}{"name": "shared"},
		"b": ".a",
	})
	require.NoError(t, err)

	got, err := Get(sch, st, "Pair", pairID, GetOptions{MaxLevel: -1, Tracking: true, Meta: false})
	require.NoError(t, err)
	obj := got.(map[string]interface{})

	_, aIsObject := obj["a"].(map[string]interface{})
	require.True(t, aIsObject)

	bRef, bIsString := obj["b"].(string)
	require.True(t, bIsString)
	require.Equal(t, ".a", bRef)
}

func TestPatchPlainPath(t *testing.T) {
	sch, st := newFixtures(t)

	beamID, err := Post(sch, st, "Beam", map[string]interface{}{
		"length": map[string]interface{}{"value": 1.0, "unit": "m"},
	})
	require.NoError(t, err)

	err = Patch(sch, st, "Beam", beamID, "length", map[string]interface{}{"value": 3000.0, "unit": "mm"})
	require.NoError(t, err)

	got, err := Get(sch, st, "Beam", beamID, GetOptions{MaxLevel: -1})
	require.NoError(t, err)
	length := got.(map[string]interface{})["length"].(map[string]interface{})
	require.InDelta(t, 3.0, length["value"], 1e-9)
}

func TestPatchFanOutOverMultiIndex(t *testing.T) {
	sch, st := newFixtures(t)

	beamID, err := Post(sch, st, "Beam", map[string]interface{}{
		"materials": []interface{}{
			map[string]interface{}{"name": "one"},
			map[string]interface{}{"name": "two"},
			map[string]interface{}{"name": "three"},
		},
	})
	require.NoError(t, err)

	err = Patch(sch, st, "Beam", beamID, "materials[0,2].name", []interface{}{"ONE", "THREE"})
	require.NoError(t, err)

	got, err := Get(sch, st, "Beam", beamID, GetOptions{MaxLevel: -1})
	require.NoError(t, err)
	materials := got.(map[string]interface{})["materials"].([]interface{})
	require.Equal(t, "ONE", materials[0].(map[string]interface{})["name"])
	require.Equal(t, "two", materials[1].(map[string]interface{})["name"])
	require.Equal(t, "THREE", materials[2].(map[string]interface{})["name"])
}

func TestCloneProducesIndependentCopyWithUpstream(t *testing.T) {
	sch, st := newFixtures(t)

	beamID, err := Post(sch, st, "Beam", map[string]interface{}{
		"length": map[string]interface{}{"value": 1.0, "unit": "m"},
	})
	require.NoError(t, err)

	cloneID, err := Clone(sch, st, "Beam", beamID, nil)
	require.NoError(t, err)
	require.NotEqual(t, beamID, cloneID)

	rec, err := st.FindOneByID("Beam", cloneID)
	require.NoError(t, err)
	meta := rec["_meta"].(map[string]interface{})
	require.Equal(t, beamID, meta["upstream"])
}

func TestGraphAndSafeLinks(t *testing.T) {
	sch, st := newFixtures(t)

	pairID, err := Post(sch, st, "Pair", map[string]interface{}{
		"a": map[string]interface{}{"name": "shared"},
		"b": ".a",
	})
	require.NoError(t, err)

	nodes, edges, err := Graph(sch, st, "Pair", pairID, false)
	require.NoError(t, err)
	require.Len(t, nodes, 2) // pair root + the one shared MaterialRecord
	require.Len(t, edges, 1) // a->mat and b->mat collapse to one edge (a set of node pairs, like the prototype's digraph)

	safe, err := SafeLinks(sch, st, "Pair", pairID, []string{"a"}, false)
	require.NoError(t, err)
	// modifying "a" (the shared material) touches it via both the "a" and
	// "b" edges, so nothing besides the root itself could be safe, and the
	// root is on the path too — expect no node spared.
	require.Empty(t, safe)
}
