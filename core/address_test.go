package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

var derivationOwners = []common.Address{
	{},
	common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"),
	common.HexToAddress("0x00000000000000000000aaaaaaaaaaaaaaaaaaaa"),
	common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaa00000000000000000000"),
	common.HexToAddress("0xEA674fdDe714fd979de3EdF0F56AA9716B898ec8"),
}

func TestDeriveAddress_MatchesCreateAddress(t *testing.T) {
	for _, owner := range derivationOwners {
		for seq := uint64(0); seq <= MaxSequence; seq++ {
			got, err := DeriveAddress(owner, seq)
			assert.NoError(t, err)
			check.Equal(t, crypto.CreateAddress(owner, seq), got)
		}
	}
}

func TestDeriveAddress_MatchesRLPEncoding(t *testing.T) {
	// Independent reference: keccak256(rlp([owner, nonce]))[12:]
	for _, owner := range derivationOwners {
		for _, seq := range []uint64{0, 1, 15, 16, 100, 127} {
			t.Run(fmt.Sprintf("%s/%d", owner.Hex(), seq), func(t *testing.T) {
				encoded, err := rlp.EncodeToBytes([]interface{}{owner, seq})
				assert.NoError(t, err)
				want := common.BytesToAddress(crypto.Keccak256(encoded)[12:])

				got, err := DeriveAddress(owner, seq)
				assert.NoError(t, err)
				check.Equal(t, want, got)
			})
		}
	}
}

func TestDeriveAddress_KnownVectors(t *testing.T) {
	owner := common.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")

	addr0, err := DeriveAddress(owner, 0)
	assert.NoError(t, err)
	check.Equal(t, common.HexToAddress("0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d"), addr0)

	addr1, err := DeriveAddress(owner, 1)
	assert.NoError(t, err)
	check.Equal(t, common.HexToAddress("0x343c43a37d37dff08ae8c4a11544c718abb4fcf8"), addr1)
}

func TestDeriveAddress_OutOfRange(t *testing.T) {
	owner := common.HexToAddress("0xEA674fdDe714fd979de3EdF0F56AA9716B898ec8")

	for _, seq := range []uint64{128, 129, 255, 256, 1 << 40} {
		addr, err := DeriveAddress(owner, seq)
		check.Error(t, err)
		check.True(t, errors.Is(err, ErrSequenceOutOfRange))
		// No silent truncation to the low byte
		check.Equal(t, common.Address{}, addr)
	}
}

func TestDeriveAddress_Deterministic(t *testing.T) {
	owner := derivationOwners[4]
	first, err := DeriveAddress(owner, 42)
	assert.NoError(t, err)
	second, err := DeriveAddress(owner, 42)
	assert.NoError(t, err)
	check.Equal(t, first, second)

	other, err := DeriveAddress(owner, 43)
	assert.NoError(t, err)
	check.NotEqual(t, first, other)
}
