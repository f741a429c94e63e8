package domain

// Action names the transition a successful check-in operation performed.
type Action string

const (
	ActionClockIn  Action = "clock_in"
	ActionClockOut Action = "clock_out"
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

// ScanResult is what an opaque card/biometric reader reports.
type ScanResult struct {
	Success  bool
	CardID   string
	Template string
	Quality  *float64
}
