package plan

import "fmt"

// DeviceCountError is returned when a builder needs exactly one device.
type DeviceCountError struct {
	Count int
}

func (e *DeviceCountError) Error() string {
	return fmt.Sprintf("invalid device count: %d (expected exactly one)", e.Count)
}

// PlanError wraps any failure while building a plan.
type PlanError struct {
	Kind Kind
	Err  error
}

func (e *PlanError) Error() string { return fmt.Sprintf("building %s plan: %v", e.Kind, e.Err) }
func (e *PlanError) Unwrap() error { return e.Err }
