package tx

// Miner fees are priced per weight unit. The weight of the unsigned
// transaction is estimated up front from the input/output counts, following
// the reference wallet's formula for CLSAG ring signatures with bulletproof
// range proofs, including the bulletproof clawback for padded proofs.

// EstimateSize returns the estimated serialized size in bytes of a
// transaction with numInputs inputs (each ring of mixin+1 members),
// numOutputs outputs and extraSize bytes of tx_extra.
func EstimateSize(numInputs, mixin, numOutputs, extraSize int) int {
	size := 0

	// Prefix: version, unlock time, in/out counts.
	size += 1 + 6
	// vin: type + amount + key offsets + key image.
	size += numInputs * (1 + 6 + (mixin+1)*2 + 32)
	// vout: amount + type + target key.
	size += numOutputs * (6 + 32)
	size += extraSize

	// rct type tag.
	size++
	// Bulletproof, padded to the next power of two outputs.
	logPadded := 0
	for (1 << logPadded) < numOutputs {
		logPadded++
	}
	size += (2*(6+logPadded)+4+5)*32 + 3
	// CLSAG signatures.
	size += numInputs * (32*(mixin+1) + 64)
	// Pseudo outs.
	size += 32 * numInputs
	// ecdh info (compact encoding).
	size += 8 * numOutputs
	// outPk commitments.
	size += 32 * numOutputs
	// txnFee.
	size += 4

	return size
}

// EstimateWeight returns the fee weight of the estimated transaction. For
// proofs padded beyond two outputs the network charges back 4/5 of the
// padding that batching saves.
func EstimateWeight(numInputs, mixin, numOutputs, extraSize int) uint64 {
	weight := uint64(EstimateSize(numInputs, mixin, numOutputs, extraSize))
	if numOutputs > 2 {
		const bpBase = 368
		logPadded := 2
		for (1 << logPadded) < numOutputs {
			logPadded++
		}
		nlr := uint64(2 * (6 + logPadded))
		bpSize := 32 * (9 + nlr)
		clawback := (bpBase*(1<<logPadded) - bpSize) * 4 / 5
		weight += clawback
	}
	return weight
}

// EstimateFee returns the miner fee for the estimated transaction at the
// given base fee and multiplier, rounded up to the quantization mask.
func EstimateFee(numInputs, mixin, numOutputs, extraSize int, baseFee, feeMultiplier, quantizationMask uint64) uint64 {
	weight := EstimateWeight(numInputs, mixin, numOutputs, extraSize)
	fee := weight * baseFee * feeMultiplier
	if quantizationMask > 1 {
		fee = (fee + quantizationMask - 1) / quantizationMask * quantizationMask
	}
	return fee
}
