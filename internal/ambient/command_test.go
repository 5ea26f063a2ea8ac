package ambient

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ambientKeeper/internal/clmath"
	"ambientKeeper/internal/model"
)

var testPool = model.Pool{
	Base:  common.Address{},
	Quote: common.HexToAddress("0xa25b25548b4c98b0c7d3d27dca5d5ca743d68b7f"),
	Index: 420,
}

func TestLPCommandEncodesNegativeTicks(t *testing.T) {
	cmd := LPCommand{
		Code:      CodeMintRangeQuote,
		Pool:      testPool,
		Range:     model.Range{Low: -104, High: 208},
		Qty:       uint256.NewInt(5896785964741205),
		LimitLow:  uint256.NewInt(1000),
		LimitHigh: uint256.NewInt(2000),
	}
	payload, err := cmd.Encode()
	require.NoError(t, err)
	require.Len(t, payload, 11*32)
	require.Equal(t, byte(CodeMintRangeQuote), payload[31])

	decoded, err := DecodeLPCommand(payload)
	require.NoError(t, err)
	require.Equal(t, cmd.Range, decoded.Range)
	require.Equal(t, cmd.Pool, decoded.Pool)
	require.True(t, cmd.Qty.Eq(decoded.Qty))
}

func TestUserCmdRoundTrip(t *testing.T) {
	data, err := PackUserCmd(CallpathLiquidity, []byte{1, 2, 3})
	require.NoError(t, err)

	callpath, payload, err := UnpackUserCmd(data)
	require.NoError(t, err)
	require.Equal(t, CallpathLiquidity, callpath)
	require.Equal(t, []byte{1, 2, 3}, payload)

	_, _, err = UnpackUserCmd([]byte{0x01})
	require.Error(t, err)
}

func TestSlippageLimitsBracketPrice(t *testing.T) {
	low, high := SlippageLimits(clmath.Q64, 100)
	require.Equal(t, -1, low.Cmp(clmath.Q64))
	require.Equal(t, 1, high.Cmp(clmath.Q64))

	// sqrt(0.99) ~ 0.994987
	ratio := new(big.Float).Quo(new(big.Float).SetInt(low.ToBig()), new(big.Float).SetInt(clmath.Q64.ToBig()))
	got, _ := ratio.Float64()
	require.InDelta(t, 0.994987, got, 1e-6)
}

func TestMinSwapOutAtUnitPrice(t *testing.T) {
	amount := uint256.NewInt(1_000_000_000_000_000_000)
	want := uint256.NewInt(990_000_000_000_000_000)

	out := MinSwapOut(model.SwapPlan{From: model.TokenBase, To: model.TokenQuote, Amount: amount}, clmath.Q64, 100)
	require.True(t, want.Eq(out), "got %s", out.ToBig())

	out = MinSwapOut(model.SwapPlan{From: model.TokenQuote, To: model.TokenBase, Amount: amount}, clmath.Q64, 100)
	require.True(t, want.Eq(out), "got %s", out.ToBig())
}

func TestMintTxFixesDrivingSide(t *testing.T) {
	dex, err := NewDex(common.HexToAddress("0xaaaaaaaacb71bf2c8cae522ea5fa455571a74106"), 100)
	require.NoError(t, err)

	plan := model.DepositPlan{
		Range:         model.Range{Low: -100, High: 104},
		BaseAmount:    uint256.NewInt(700),
		QuoteAmount:   uint256.NewInt(300),
		Liquidity:     uint256.NewInt(1),
		Driving:       model.TokenQuote,
		DrivingAmount: uint256.NewInt(300),
	}
	req, err := dex.MintTx(testPool, plan, clmath.Q64)
	require.NoError(t, err)
	require.Equal(t, dex.Address(), req.To)
	require.Equal(t, int64(700), req.Value.Int64())

	callpath, payload, err := UnpackUserCmd(req.Data)
	require.NoError(t, err)
	require.Equal(t, CallpathLiquidity, callpath)

	cmd, err := DecodeLPCommand(payload)
	require.NoError(t, err)
	require.Equal(t, CodeMintRangeQuote, cmd.Code)
	require.Equal(t, uint64(300), cmd.Qty.Uint64())
	require.Equal(t, plan.Range, cmd.Range)
}

func TestBurnTxRequiresLiquidity(t *testing.T) {
	dex, err := NewDex(common.HexToAddress("0xaaaaaaaacb71bf2c8cae522ea5fa455571a74106"), 100)
	require.NoError(t, err)

	_, err = dex.BurnTx(testPool, model.Position{PositionID: "p"}, clmath.Q64)
	require.Error(t, err)

	req, err := dex.BurnTx(testPool, model.Position{
		PositionID: "p",
		Range:      model.Range{Low: -8, High: 8},
		Liquidity:  uint256.NewInt(42),
	}, clmath.Q64)
	require.NoError(t, err)
	require.Equal(t, int64(0), req.Value.Int64())

	_, payload, err := UnpackUserCmd(req.Data)
	require.NoError(t, err)
	cmd, err := DecodeLPCommand(payload)
	require.NoError(t, err)
	require.Equal(t, CodeBurnRange, cmd.Code)
	require.Equal(t, uint64(42), cmd.Qty.Uint64())
}
