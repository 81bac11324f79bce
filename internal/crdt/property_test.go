package crdt

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/iudanet/gophreview/internal/models"
)

// runOps выполняет на реплике последовательность операций и возвращает
// дельты, которые реплика отправила бы пирам
func runOps(s *Store, ops []int) [][]byte {
	var deltas [][]byte
	unsubscribe := s.Observe(func(c Change) {
		if c.IsLocal() {
			deltas = append(deltas, c.Delta)
		}
	})
	defer unsubscribe()

	for _, op := range ops {
		id := fmt.Sprintf("r%d", op%4)
		switch op % 3 {
		case 0:
			s.Delete(id)
		case 1:
			_ = s.Set(comment(id, fmt.Sprintf("content-%d", op)))
		default:
			record := comment(id, "base")
			record.Status = models.StatusResolved
			_ = s.Set(record)
		}
	}
	return deltas
}

// TestStoreConvergence проверяет, что реплики, получившие одинаковый набор
// дельт в разном порядке, имеют одинаковое содержимое
func TestStoreConvergence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("replicas converge regardless of delta order", prop.ForAll(
		func(opsA, opsB []int) bool {
			deltas := append(
				runOps(NewStore("node-a", testLogger()), opsA),
				runOps(NewStore("node-b", testLogger()), opsB)...,
			)

			forward := NewStore("node-x", testLogger())
			for _, d := range deltas {
				if _, err := forward.ApplyDelta(d, "remote"); err != nil {
					return false
				}
			}

			backward := NewStore("node-y", testLogger())
			for i := len(deltas) - 1; i >= 0; i-- {
				if _, err := backward.ApplyDelta(deltas[i], "remote"); err != nil {
					return false
				}
			}

			return reflect.DeepEqual(forward.List(), backward.List())
		},
		gen.SliceOf(gen.IntRange(0, 99)),
		gen.SliceOf(gen.IntRange(0, 99)),
	))

	properties.Property("full state round trip reproduces the replica", prop.ForAll(
		func(ops []int) bool {
			source := NewStore("node-a", testLogger())
			runOps(source, ops)

			data, err := source.EncodeFull()
			if err != nil {
				return false
			}
			copied := NewStore("node-b", testLogger())
			if _, err := copied.ApplyDelta(data, "remote"); err != nil {
				return false
			}
			return reflect.DeepEqual(source.List(), copied.List())
		},
		gen.SliceOf(gen.IntRange(0, 99)),
	))

	properties.TestingRun(t)
}
