package bivcodec

import "math/rand"

// FrameChain is an ordered sequence of records: exactly one Sync
// record followed by zero or more Image records.
//
// The layer-grouped, per-layer shuffle below plays the same role a
// tier-2 packetizer plays in a wavelet codec — turning a tree of
// coefficients into one ordered, truncatable transmission sequence,
// coarsest structure first — but BSP nodes carry a single scalar each,
// so there is no precinct/codeblock machinery underneath it.
type FrameChain struct {
	Records []Record
}

// ToChain serializes a BSP into a FrameChain. clock supplies the Sync record's timestamp.
func (b *BSP) ToChain(clock Clock) FrameChain {
	sync := Record{
		IsSync: true,
		Sync: SyncRecord{
			Width:       uint16(b.Width),
			Ratio:       b.Ratio,
			ColorFormat: b.ColorSpace,
			ID:          0xFF, // id = -1, truncated to a byte
			Timestamp:   uint16(clock.Now().Unix()),
		},
	}

	layers := make(map[int][]Record)
	maxLayer := 0

	var walk func(n *node, path Path)
	walk = func(n *node, path Path) {
		if n.left == nil || n.right == nil {
			// Leaves, and the single-child nodes repair produces, emit no
			// record: their color is carried by their parent's record.
			return
		}

		layer := path.Layer()
		layers[layer] = append(layers[layer], Record{
			Image: ImageRecord{
				Layer:   uint8(layer),
				Path:    path.Fuse(),
				Channel: 0,
				ValueL:  clampByte(n.left.value),
				ValueR:  clampByte(n.right.value),
			},
		})
		if layer > maxLayer {
			maxLayer = layer
		}

		walk(n.left, path.Child(false))
		walk(n.right, path.Child(true))
	}
	walk(b.root, RootPath())

	records := make([]Record, 0, 1+len(layers))
	records = append(records, sync)
	for layer := 0; layer <= maxLayer; layer++ {
		group := layers[layer]
		shuffleLayer(group)
		records = append(records, group...)
	}
	return FrameChain{Records: records}
}

// shuffleLayer permutes a single layer's records with a fresh,
// fixed-seed RNG, so truncation drops spatially scattered rather than
// spatially biased detail. A new seed-0 source is created per layer
// rather than sharing one generator across layers, so the permutation
// within each layer is reproducible independent of the others.
func shuffleLayer(records []Record) {
	re := rand.New(rand.NewSource(0))
	re.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
}

// ApplyTo folds the chain into b left-to-right: Sync records update canvas metadata, Image records
// invoke BSP.ApplyImageRecord. The order within a layer does not
// affect the resulting tree's content, only intermediate states.
func (c FrameChain) ApplyTo(b *BSP) {
	for _, rec := range c.Records {
		if rec.IsSync {
			b.ApplySyncRecord(rec.Sync)
		} else {
			b.ApplyImageRecord(rec.Image)
		}
	}
}

// ImageRecords returns the chain's records after the leading Sync
// record — the candidate records an encoder scores and reorders.
func (c FrameChain) ImageRecords() []Record {
	if len(c.Records) == 0 {
		return nil
	}
	return c.Records[1:]
}
