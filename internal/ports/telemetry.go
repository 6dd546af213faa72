package ports

import "time"

// Telemetry receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Telemetry interface {
	MessageParsed(result string)
	OrderTransition(outcome string)
	InboundMessages(source string, count int)
	AlertDelivered(success bool)
	LoopTick(loop string, err error, elapsed time.Duration)
}

type NopTelemetry struct{}

func (NopTelemetry) MessageParsed(string) {}
func (NopTelemetry) OrderTransition(string) {}
func (NopTelemetry) InboundMessages(string, int) {}
func (NopTelemetry) AlertDelivered(bool) {}
func (NopTelemetry) LoopTick(string, error, time.Duration) {}
