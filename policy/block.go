// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package policy

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/bitmark-inc/hsdproxy/bloom"
	"github.com/bitmark-inc/hsdproxy/fault"
)

const (
	getBlockByHeight = "getblockbyheight"
	getAddressBloom  = "getaddressbloom"

	// coinbase inputs spend this txid
	coinbaseTxID = "0000000000000000000000000000000000000000000000000000000000000000"
	txIDLength   = 32

	// MaximumHeights - most blocks in one bloom request
	MaximumHeights = 100
)

// BloomExpiry - lifetimes of a cached bloom record
var BloomExpiry = Expiry{Volatile: 15 * time.Minute, Permanent: 24 * time.Hour}

// Block - the parts of a verbose block used for the blooms
type Block struct {
	Transactions []Transaction `json:"tx"`
}

// Transaction - inputs and outputs of one transaction
type Transaction struct {
	Inputs  []Input  `json:"vin"`
	Outputs []Output `json:"vout"`
}

// Input - the outpoint being spent
type Input struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// Output - the receiving address
type Output struct {
	Address *Address `json:"address"`
}

// Address - a versioned address hash
type Address struct {
	Version uint8  `json:"version"`
	Hash    string `json:"hash"`
}

// BloomRecord - address and outpoint filters for one block
type BloomRecord struct {
	Height        uint64 `json:"height"`
	AddressBloom  string `json:"addressBloom"`
	OutpointBloom string `json:"outpointBloom"`
}

// Block - verbose block with transaction details
func (p *Policy) Block(ctx context.Context, height uint64) (json.RawMessage, error) {
	params := []interface{}{height, 1, 1}
	return p.Resolve(ctx, getBlockByHeight, params, &height, BlockExpiry)
}

// AddressBloom - the bloom record for the block at height
func (p *Policy) AddressBloom(ctx context.Context, height uint64) (*BloomRecord, error) {
	chain, err := p.heights.Get(ctx)
	if nil != err {
		return nil, err
	}

	params := []interface{}{height}
	permanent := IsFinal(chain, height)
	key := CacheKey(getAddressBloom, params, chain, permanent)
	ttl := BloomExpiry.Volatile
	if permanent {
		ttl = BloomExpiry.Permanent
	}

	data, found, err := p.store.Get(ctx, key)
	if nil != err {
		return nil, err
	}
	if found {
		var record BloomRecord
		err := sonnet.Unmarshal(data, &record)
		if nil == err {
			return &record, nil
		}
		p.log.Warnf("bloom record: %s  error: %s", key, err)
	}

	blockData, err := p.Block(ctx, height)
	if nil != err {
		return nil, err
	}

	var block *Block
	err = sonnet.Unmarshal(blockData, &block)
	if nil != err {
		p.log.Errorf("block: %d  decode error: %s", height, err)
		return nil, fault.ErrUnexpectedBackendResponse
	}
	if nil == block {
		return nil, fault.ErrBlockNotFound
	}

	record, err := NewBloomRecord(height, block)
	if nil != err {
		return nil, err
	}

	data, err = json.Marshal(record)
	if nil != err {
		return nil, err
	}
	err = p.store.Set(ctx, key, data, ttl)
	if nil != err {
		return nil, err
	}
	return record, nil
}

// AddressBlooms - bloom records for a list of heights
//
// negative heights and heights above the tip are skipped
func (p *Policy) AddressBlooms(ctx context.Context, heights []int64) ([]*BloomRecord, error) {
	if len(heights) > MaximumHeights {
		return nil, fault.NewInvalidParams("Cannot specify more than 100 block heights.")
	}

	chain, err := p.heights.Get(ctx)
	if nil != err {
		return nil, err
	}

	records := make([]*BloomRecord, 0, len(heights))
	for _, h := range heights {
		if h < 0 || uint64(h) > chain {
			continue
		}
		record, err := p.AddressBloom(ctx, uint64(h))
		if nil != err {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// AddressBloomRange - bloom records for start..end inclusive
func (p *Policy) AddressBloomRange(ctx context.Context, start int64, end int64) ([]*BloomRecord, error) {
	switch {
	case end-start > MaximumHeights:
		return nil, fault.NewInvalidParams("Cannot specify a range larger than 100 blocks.")
	case start >= end:
		return nil, fault.NewInvalidParams("Start must come before end.")
	case start < 0:
		return nil, fault.NewInvalidParams("Start cannot be negative.")
	}

	chain, err := p.heights.Get(ctx)
	if nil != err {
		return nil, err
	}
	if uint64(end) > chain {
		return nil, fault.NewInvalidParams("End cannot be higher than the chain height.")
	}

	records := make([]*BloomRecord, 0, end-start+1)
	for h := start; h <= end; h++ {
		record, err := p.AddressBloom(ctx, uint64(h))
		if nil != err {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// NewBloomRecord - build the address and outpoint filters of a block
//
// outpoint elements are txid || vout (little endian) for every input
// other than a coinbase, address elements are hash || version for
// every output
func NewBloomRecord(height uint64, block *Block) (*BloomRecord, error) {
	m, k := bloom.Recommended(len(block.Transactions))

	addresses, err := bloom.New(m, k)
	if nil != err {
		return nil, err
	}
	outpoints, err := bloom.New(m, k)
	if nil != err {
		return nil, err
	}

	for _, tx := range block.Transactions {
		for _, in := range tx.Inputs {
			if coinbaseTxID == strings.ToLower(in.TxID) {
				continue
			}
			txID, err := hex.DecodeString(in.TxID)
			if nil != err || txIDLength != len(txID) {
				return nil, fault.ErrTransactionIDLength
			}
			element := make([]byte, len(txID)+4)
			copy(element, txID)
			binary.LittleEndian.PutUint32(element[len(txID):], in.Vout)
			outpoints.Add(element)
		}

		for _, out := range tx.Outputs {
			if nil == out.Address {
				continue
			}
			hash, err := hex.DecodeString(out.Address.Hash)
			if nil != err {
				return nil, fault.ErrUnexpectedBackendResponse
			}
			addresses.Add(append(hash, out.Address.Version))
		}
	}

	return &BloomRecord{
		Height:        height,
		AddressBloom:  hex.EncodeToString(addresses.Bytes()),
		OutpointBloom: hex.EncodeToString(outpoints.Bytes()),
	}, nil
}
