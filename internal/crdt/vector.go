package crdt

import "github.com/iudanet/gophreview/internal/models"

// VersionVector хранит для каждого узла максимальный увиденный timestamp.
// Используется, чтобы отдать пиру только то, чего у него еще нет.
type VersionVector map[string]int64

// Covers сообщает, видел ли владелец вектора эту запись
func (vv VersionVector) Covers(reg *models.Register) bool {
	return vv[reg.NodeID] >= reg.Timestamp
}

// Observe учитывает запись в векторе
func (vv VersionVector) Observe(reg *models.Register) {
	if reg.Timestamp > vv[reg.NodeID] {
		vv[reg.NodeID] = reg.Timestamp
	}
}

// Clone копирует вектор
func (vv VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(vv))
	for k, v := range vv {
		out[k] = v
	}
	return out
}
