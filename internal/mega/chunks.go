package mega

// chunkUnit is MEGA's chunk size increment. Chunk boundaries are a
// protocol requirement, not a tunable: the provider frames transfers
// and MAC state at exactly these offsets.
const chunkUnit = 0x20000 // 128 KiB

// maxChunkSize caps chunk growth after the eighth chunk.
const maxChunkSize = 8 * chunkUnit // 1 MiB

// Chunk is one span of the payload, addressed in ciphertext offsets.
type Chunk struct {
	Offset int64
	Size   int64
}

// ChunkPlan segments [0, size) the way MEGA does: the first eight
// chunks grow as 1U, 2U, ... 8U, then every chunk is 8U until a final,
// possibly shorter one.
func ChunkPlan(size int64) []Chunk {
	var plan []Chunk
	var offset, next int64
	next = chunkUnit
	for offset < size {
		length := next
		if remaining := size - offset; length > remaining {
			length = remaining
		}
		plan = append(plan, Chunk{Offset: offset, Size: length})
		offset += length
		if next < maxChunkSize {
			next += chunkUnit
		}
	}
	return plan
}
