package ambient

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ambientKeeper/internal/model"
)

type fakeCaller struct {
	t       *testing.T
	outputs map[string][]interface{}
	calls   []string
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := CrocQueryABI()
	require.NoError(f.t, err)
	method, err := parsed.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	f.calls = append(f.calls, method.Name)
	return method.Outputs.Pack(f.outputs[method.Name]...)
}

func TestQueryRangeLiquidity(t *testing.T) {
	caller := &fakeCaller{t: t, outputs: map[string][]interface{}{
		"queryRangeTokens": {big.NewInt(500), big.NewInt(7), big.NewInt(9)},
	}}
	q, err := NewQuery(caller, common.HexToAddress("0x1"), nil)
	require.NoError(t, err)

	got, err := q.QueryRangeLiquidity(context.Background(), common.HexToAddress("0x2"), testPool, model.Range{Low: -100, High: 104})
	require.NoError(t, err)
	require.Equal(t, uint64(500), got.Liquidity.Uint64())
	require.Equal(t, uint64(7), got.BaseQty.Uint64())
	require.Equal(t, uint64(9), got.QuoteQty.Uint64())
	require.Equal(t, []string{"queryRangeTokens"}, caller.calls)
}

func TestQueryPriceRejectsUninitializedPool(t *testing.T) {
	caller := &fakeCaller{t: t, outputs: map[string][]interface{}{
		"queryPrice": {big.NewInt(0)},
	}}
	q, err := NewQuery(caller, common.HexToAddress("0x1"), nil)
	require.NoError(t, err)

	_, err = q.QueryPrice(context.Background(), testPool)
	require.Error(t, err)

	caller.outputs["queryPrice"] = []interface{}{new(big.Int).Lsh(big.NewInt(1), 64)}
	price, err := q.QueryPrice(context.Background(), testPool)
	require.NoError(t, err)
	require.Equal(t, 0, price.ToBig().Cmp(new(big.Int).Lsh(big.NewInt(1), 64)))
}

func TestNewQueryValidates(t *testing.T) {
	_, err := NewQuery(nil, common.HexToAddress("0x1"), nil)
	require.Error(t, err)
	_, err = NewQuery(&fakeCaller{t: t}, common.Address{}, nil)
	require.Error(t, err)
}
