package metrics

import (
	"time"
)

// RecordEnvelope records one protocol envelope
func (r *Registry) RecordEnvelope(direction, kind string, size int) {
	r.EnvelopesTotal.WithLabelValues(direction, kind).Inc()
	r.EnvelopeBytesTotal.WithLabelValues(direction).Add(float64(size))
}

// RecordDecision records a validation decision for an operation (add, update, delete)
func (r *Registry) RecordDecision(admitted bool, op string) {
	if admitted {
		r.DecisionsTotal.WithLabelValues(ResultAdmitted, op).Inc()
		return
	}
	r.DecisionsTotal.WithLabelValues(ResultRejected, op).Inc()
}

// RecordJoin records an auth attempt
func (r *Registry) RecordJoin(ok bool) {
	if ok {
		r.PeerJoinsTotal.WithLabelValues(ResultOK).Inc()
		return
	}
	r.PeerJoinsTotal.WithLabelValues(ResultFailed).Inc()
}

// RecordSave records a session save
func (r *Registry) RecordSave(err error, duration time.Duration) {
	if err != nil {
		r.AutosaveTotal.WithLabelValues(ResultFailed).Inc()
	} else {
		r.AutosaveTotal.WithLabelValues(ResultOK).Inc()
	}
	r.AutosaveDuration.Observe(duration.Seconds())
}

// SetPeers sets the connected peers gauge
func (r *Registry) SetPeers(n int) {
	r.PeersConnected.Set(float64(n))
}
