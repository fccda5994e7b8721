package chains

import (
	"bytes"
	"math/rand"
	"strconv"
	"testing"

	"nftmarket/pkg/config"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryOrder(t *testing.T) {
	r := Default()
	list := r.List()
	require.Len(t, list, 18)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, "Mantle", list[len(list)-1].Name)

	// List returns a copy.
	list[0].Name = "changed"
	assert.Equal(t, "Ethereum", r.ResolveName(1))
}

func TestResolveName(t *testing.T) {
	r := Default()
	assert.Equal(t, "Polygon", r.ResolveName(137))
	assert.Equal(t, "Aurora", r.ResolveName(1313161554))
	assert.Equal(t, "Chain 999999", r.ResolveName(999999))
	assert.Equal(t, "Chain 0", r.ResolveName(0))
	assert.Equal(t, "Chain -5", r.ResolveName(-5))
}

func TestResolveNameUnknownIDs(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		id := rng.Int63()
		if r.Contains(id) {
			continue
		}
		name := r.ResolveName(id)
		assert.Equal(t, "Chain "+strconv.FormatInt(id, 10), name)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]Chain{{ID: 1, Name: "Ethereum"}, {ID: 1, Name: "Again"}})
	assert.Error(t, err)

	_, err = New([]Chain{{ID: 1, Name: " "}})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig([]config.ChainConfig{
		{Name: "Local", ChainID: 31337, RPCURLs: []string{"http://127.0.0.1:8545"}},
		{Name: "Unverified", RPCURLs: []string{"http://unknown"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{31337}, r.IDs())
	c, ok := r.Lookup(31337)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:8545", c.RPCURL)

	r, err = FromConfig(nil)
	require.NoError(t, err)
	assert.Len(t, r.List(), 18)
}

func TestRenderGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Default()))

	g := goldie.New(t)
	g.Assert(t, "default_registry", buf.Bytes())
}
