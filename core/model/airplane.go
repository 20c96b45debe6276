package model

// OperationKind defines the runway operation an airplane requests.
type OperationKind int

const (
	OperationLanding OperationKind = iota
	OperationDeparture
)

func (o OperationKind) String() string {
	switch o {
	case OperationLanding:
		return "landing"
	case OperationDeparture:
		return "departure"
	default:
		return "unknown"
	}
}

// Priority classifies how urgently an airplane must be handled.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityEmergency
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Purpose describes what an airplane carries. Metadata only.
type Purpose int

const (
	PurposePassengers Purpose = iota
	PurposeCargo
	PurposeMixed
)

func (p Purpose) String() string {
	switch p {
	case PurposePassengers:
		return "passengers"
	case PurposeCargo:
		return "cargo"
	case PurposeMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Status tracks an airplane through its dispatch lifecycle. It is
// observational: the airport updates it as a side effect of dispatch and
// no control decision reads it back.
type Status int

const (
	StatusScheduled Status = iota
	StatusApproaching
	StatusLanding
	StatusLanded
	StatusTaxiing
	StatusAtGate
	StatusDeparting
	StatusInAir
	StatusDiverted
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusApproaching:
		return "approaching"
	case StatusLanding:
		return "landing"
	case StatusLanded:
		return "landed"
	case StatusTaxiing:
		return "taxiing"
	case StatusAtGate:
		return "at_gate"
	case StatusDeparting:
		return "departing"
	case StatusInAir:
		return "in_air"
	case StatusDiverted:
		return "diverted"
	default:
		return "unknown"
	}
}

// Airplane represents one dispatch request against the runway pool.
type Airplane struct {
	ID        string
	Operation OperationKind
	Priority  Priority

	// Metadata carried for logging only.
	Model      string
	Purpose    Purpose
	Passengers int
	CargoTons  float64
}

// IsEmergency reports whether the airplane must be routed with priority.
func (a Airplane) IsEmergency() bool { return a.Priority == PriorityEmergency }
