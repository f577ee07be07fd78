// internal/protocol/registers.go
package protocol

import (
	"fmt"
	"strings"
)

// NamedRegister is a Cortex-M System Control Block register reachable by name
type NamedRegister struct {
	Name    string `json:"name"`
	Address uint32 `json:"address"`
}

// scbRegisters is kept in address order; lookups go through LookupRegister.
var scbRegisters = []NamedRegister{
	{Name: "CPUID", Address: 0xE000ED00},
	{Name: "ICSR", Address: 0xE000ED04},
	{Name: "VTOR", Address: 0xE000ED08},
	{Name: "AIRCR", Address: 0xE000ED0C},
	{Name: "SCR", Address: 0xE000ED10},
	{Name: "CCR", Address: 0xE000ED14},
}

// NamedRegisters returns a copy of the SCB register table
func NamedRegisters() []NamedRegister {
	out := make([]NamedRegister, len(scbRegisters))
	copy(out, scbRegisters)
	return out
}

// LookupRegister resolves a register name, ignoring case
func LookupRegister(name string) (NamedRegister, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for _, r := range scbRegisters {
		if r.Name == key {
			return r, nil
		}
	}
	return NamedRegister{}, newError(KindUnknownRegister, "lookup", fmt.Sprintf("unknown register %q", name), nil)
}
