package repository

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"driftwatch/internal/model"
)

func TestMongoRecordCarriesSequence(t *testing.T) {
	r := rec("r1", "m1", "p1", t0, model.StanceSupportive, 0.4)
	data, err := bson.Marshal(mongoRecord{ScoreRecord: *r, Seq: 42})
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.Equal(t, "r1", raw["_id"])
	assert.Equal(t, "m1", raw["modelName"])
	assert.EqualValues(t, 42, raw["seq"])

	var decoded model.ScoreRecord
	require.NoError(t, bson.Unmarshal(data, &decoded))
	assert.Equal(t, r.ID, decoded.ID)
	assert.Equal(t, r.Stance, decoded.Stance)
	assert.True(t, r.Timestamp.Equal(decoded.Timestamp))
}

func TestMongoSortBreaksTimestampTies(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "timestamp", Value: -1}, {Key: "seq", Value: -1}}, newestFirst)
	assert.Equal(t, bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}}, oldestFirst)
}

func TestMongoSequenceIsStrictlyIncreasing(t *testing.T) {
	repo := &mongoScoreRepo{}

	const workers, perWorker = 8, 200
	seqs := make([][]int64, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				seqs[w] = append(seqs[w], repo.nextSeq())
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, workers*perWorker)
	for _, s := range seqs {
		for i, v := range s {
			require.False(t, seen[v], "duplicate sequence %d", v)
			seen[v] = true
			if i > 0 {
				require.Greater(t, v, s[i-1])
			}
		}
	}
}
