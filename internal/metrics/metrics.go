// Package metrics exports admission, settlement and dispatch metrics.
package metrics

import (
	"time"

	"paygate/internal/core/domain"
)

// NoOp is a ports.Collector that records nothing.
type NoOp struct{}

func (NoOp) RecordAdmission(string, domain.AdmissionState, string) {}
func (NoOp) RecordSettlement(string, time.Duration)                {}
func (NoOp) RecordDispatch(string, bool, time.Duration)            {}
