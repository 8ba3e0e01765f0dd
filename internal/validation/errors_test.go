package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	body := []byte(`{
		"name": [{"code": "required", "message": null, "params": {}}],
		"vdaf": {
			"bits": [{"code": "range", "message": null, "params": {"min": 1, "max": 64}}]
		},
		"expiration": null
	}`)

	tree, err := Parse(body)
	require.NoError(t, err)

	name, ok := tree.Field("name")
	require.True(t, ok)
	require.IsType(t, Leaf{}, name)
	assert.Equal(t, "required", name.(Leaf)[0].Code)
	assert.Nil(t, name.(Leaf)[0].Message)

	bits, ok := tree.Field("vdaf", "bits")
	require.True(t, ok)
	assert.Equal(t, float64(64), bits.(Leaf)[0].Params["max"])

	_, ok = tree.Field("expiration")
	assert.False(t, ok, "null children are skipped")

	_, ok = tree.Field("name", "deeper")
	assert.False(t, ok)

	assert.Equal(t, 2, tree.Len())
	assert.False(t, tree.Empty())
}

func TestParseRejectsScalars(t *testing.T) {
	_, err := Parse([]byte(`{"name": "required"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[]`))
	assert.Error(t, err)
}

func TestNodeBuilders(t *testing.T) {
	tree := Node{}
	tree.Add("name", NewViolation("required"))
	tree.Add("name", NewViolation("length", "min", 1, "max", 100))
	tree.Nest("vdaf").Add("bits", NewViolation("range", "min", 1))
	tree.Nest("vdaf").Add("buckets", NewViolation("sorted"))

	name, _ := tree.Field("name")
	assert.Len(t, name, 2)
	assert.Equal(t, map[string]any{"min": 1, "max": 100}, name.(Leaf)[1].Params)

	vdaf, _ := tree.Field("vdaf")
	assert.Len(t, vdaf, 2)
	assert.Equal(t, 4, tree.Len())
}

func TestNodeEmpty(t *testing.T) {
	tree := Node{"name": Leaf{}}
	tree.Nest("vdaf")
	assert.True(t, tree.Empty())
}

func TestString(t *testing.T) {
	tree := Node{}
	tree.Add("name", NewViolation("required"))
	tree.Add("name", NewViolation("custom").WithMessage("is taken"))
	tree.Nest("vdaf").Add("bits", NewViolation("range", "min", 1))

	expected := "" +
		"- name:\n" +
		"  * required\n" +
		"  * custom is taken\n" +
		"- vdaf:\n" +
		"  - bits:\n" +
		"    * range {\"min\":1}\n"
	assert.Equal(t, expected, tree.String())
}
