package utils

// BatchHelper helps chunk/index related calculation for batch scheduling
type BatchHelper struct {
	batchSize int
}

// NewBatchHelper creates a new BatchHelper, batchSize smaller than 1 is treated as 1
func NewBatchHelper(batchSize int) *BatchHelper {
	if batchSize < 1 {
		batchSize = 1
	}

	return &BatchHelper{
		batchSize: batchSize,
	}
}

// Min returns min value between val1 and val2
func (helper *BatchHelper) Min(val1 int, val2 int) int {
	if val1 <= val2 {
		return val1
	}
	return val2
}

// GetBatchSize returns batch size
func (helper *BatchHelper) GetBatchSize() int {
	return helper.batchSize
}

// GetBatchIDForIndex returns batch index for item index
func (helper *BatchHelper) GetBatchIDForIndex(index int) int {
	return index / helper.batchSize
}

// GetBatchStartIndex returns the first item index of the batch
func (helper *BatchHelper) GetBatchStartIndex(batchID int) int {
	return batchID * helper.batchSize
}

// GetBatchCount returns the number of batches needed for total items
func (helper *BatchHelper) GetBatchCount(total int) int {
	if total <= 0 {
		return 0
	}
	return helper.GetBatchIDForIndex(total-1) + 1
}

// GetBatchRange returns start (inclusive) and end (exclusive) item index of the batch
func (helper *BatchHelper) GetBatchRange(batchID int, total int) (int, int) {
	start := helper.GetBatchStartIndex(batchID)
	if start >= total || batchID < 0 {
		// nothing to schedule
		return 0, 0
	}

	end := helper.Min(start+helper.batchSize, total)
	return start, end
}

// IsLastBatch checks if the batch is the last one for total items
func (helper *BatchHelper) IsLastBatch(batchID int, total int) bool {
	return batchID >= helper.GetBatchCount(total)-1
}
