// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "code.hybscloud.com/atomix"

// counters are global monotonic counters shared by every carrier.
var (
	fiberCounter   atomix.Uint64
	carrierCounter atomix.Uint32
	keyHashCounter atomix.Uint32
)

// keyHashIncrement spreads consecutive key hashes over power-of-two tables
// (the 32-bit golden ratio constant).
const keyHashIncrement = 0x61c88647

// nextFiberID returns the next monotonically increasing fiber identity.
func nextFiberID() uint64 {
	return fiberCounter.Add(1)
}

func nextCarrierID() uint32 {
	return carrierCounter.Add(1)
}

// nextKeyHash returns the identity hash for a new local-store key.
func nextKeyHash() uint32 {
	return keyHashCounter.Add(keyHashIncrement)
}
