package domain

import "fmt"

// ModuleCode identifies one audit module of the assessment pipeline.
type ModuleCode string

const (
	ModuleNetwork     ModuleCode = "NETWORK"
	ModuleBackup      ModuleCode = "BACKUP"
	ModuleCost        ModuleCode = "COST"
	ModuleIdentity    ModuleCode = "IDENTITY"
	ModulePolicy      ModuleCode = "POLICY"
	ModuleResource    ModuleCode = "RESOURCE"
	ModuleReservation ModuleCode = "RESERVATION"
	ModuleSecurity    ModuleCode = "SECURITY"
	ModulePatch       ModuleCode = "PATCH"
	ModulePerformance ModuleCode = "PERFORMANCE"
	ModuleCompliance  ModuleCode = "COMPLIANCE"
)

var moduleCodes = map[ModuleCode]struct{}{
	ModuleNetwork:     {},
	ModuleBackup:      {},
	ModuleCost:        {},
	ModuleIdentity:    {},
	ModulePolicy:      {},
	ModuleResource:    {},
	ModuleReservation: {},
	ModuleSecurity:    {},
	ModulePatch:       {},
	ModulePerformance: {},
	ModuleCompliance:  {},
}

// ParseModuleCode validates a requested module code against the known set.
func ParseModuleCode(s string) (ModuleCode, error) {
	code := ModuleCode(s)
	if _, ok := moduleCodes[code]; !ok {
		return "", fmt.Errorf("unknown module code %q", s)
	}
	return code, nil
}

func (m ModuleCode) String() string {
	return string(m)
}
