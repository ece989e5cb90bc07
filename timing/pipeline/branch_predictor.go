package pipeline

import "fmt"

// BranchPredictorConfig holds configuration for the branch predictor.
type BranchPredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32 `json:"bht_size" yaml:"bht_size"`
	// BTBSets is the number of sets in the Branch Target Buffer.
	// Default is 64.
	BTBSets int `json:"btb_sets" yaml:"btb_sets"`
	// BTBWays is the associativity of the Branch Target Buffer.
	// Default is 4.
	BTBWays int `json:"btb_ways" yaml:"btb_ways"`
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		BHTSize: 1024,
		BTBSets: 64,
		BTBWays: 4,
	}
}

// Validate checks the predictor geometry.
func (c BranchPredictorConfig) Validate() error {
	if c.BHTSize == 0 || c.BHTSize&(c.BHTSize-1) != 0 {
		return fmt.Errorf("bht_size must be a power of 2, got %d", c.BHTSize)
	}
	if c.BTBSets <= 0 || c.BTBWays <= 0 {
		return fmt.Errorf("btb_sets and btb_ways must be > 0")
	}
	return nil
}

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the number of conditional branches predicted at
	// fetch, including those on a wrong path.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the percentage of resolved predictions that were
// correct.
func (s BranchPredictorStats) Accuracy() float64 {
	resolved := s.Correct + s.Mispredictions
	if resolved == 0 {
		return 0
	}
	return float64(s.Correct) / float64(resolved) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s BranchPredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the branch is predicted to be taken.
	Taken bool
	// Target is the predicted target address (if known from BTB).
	Target uint64
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// BranchPredictor implements a 2-bit saturating counter (bimodal) predictor
// with a Branch Target Buffer (BTB).
type BranchPredictor struct {
	// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
	//         2=Weakly Taken, 3=Strongly Taken
	bht     []uint8
	bhtSize uint32

	btb *BTB

	stats BranchPredictorStats
}

// NewBranchPredictor creates a new branch predictor with the given configuration.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	defaults := DefaultBranchPredictorConfig()
	if config.BHTSize == 0 {
		config.BHTSize = defaults.BHTSize
	}
	if config.BTBSets == 0 {
		config.BTBSets = defaults.BTBSets
	}
	if config.BTBWays == 0 {
		config.BTBWays = defaults.BTBWays
	}

	bp := &BranchPredictor{
		bht:     make([]uint8, config.BHTSize),
		bhtSize: config.BHTSize,
		btb:     NewBTB(config.BTBSets, config.BTBWays),
	}
	bp.resetBHT()

	return bp
}

// resetBHT sets every counter to weakly not taken.
func (bp *BranchPredictor) resetBHT() {
	for i := range bp.bht {
		bp.bht[i] = 1
	}
}

// bhtIndex uses the halfword-aligned PC bits.
func (bp *BranchPredictor) bhtIndex(pc uint64) uint32 {
	return uint32((pc >> 1) & uint64(bp.bhtSize-1))
}

// Predict makes a branch prediction for the given PC.
func (bp *BranchPredictor) Predict(pc uint64) Prediction {
	pred := Prediction{Taken: bp.bht[bp.bhtIndex(pc)] >= 2}

	if target, ok := bp.btb.Lookup(pc); ok {
		pred.Target = target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// PredictTarget looks up only the BTB, for indirect jumps.
func (bp *BranchPredictor) PredictTarget(pc uint64) (uint64, bool) {
	target, ok := bp.btb.Lookup(pc)
	if ok {
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}
	return target, ok
}

// Update trains the predictor with a conditional branch outcome.
func (bp *BranchPredictor) Update(pc uint64, taken bool, target uint64) {
	idx := bp.bhtIndex(pc)
	counter := bp.bht[idx]

	if taken {
		if counter < 3 {
			bp.bht[idx] = counter + 1
		}
		bp.btb.Insert(pc, target)
	} else if counter > 0 {
		bp.bht[idx] = counter - 1
	}
}

// UpdateTarget records the target of an indirect jump.
func (bp *BranchPredictor) UpdateTarget(pc, target uint64) {
	bp.btb.Insert(pc, target)
}

// Record counts the outcome of a resolved prediction.
func (bp *BranchPredictor) Record(correct bool) {
	if correct {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	bp.resetBHT()
	bp.btb.Reset()
	bp.stats = BranchPredictorStats{}
}
