package agent

import (
	"hash/fnv"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

// The persona roster. Plausible middle-class Indian message recipients; one
// is assigned per session at creation and never changes.
var personas = []session.Persona{
	{Name: "Ramesh Kumar", City: "Mumbai", Register: "hinglish"},
	{Name: "Priya Sharma", City: "Delhi", Register: "hinglish"},
	{Name: "Suresh Iyer", City: "Bangalore", Register: "english"},
	{Name: "Anita Desai", City: "Pune", Register: "hinglish"},
	{Name: "Vikram Menon", City: "Chennai", Register: "english"},
	{Name: "Kavita Joshi", City: "Ahmedabad", Register: "hinglish"},
}

// PickPersona deterministically assigns a persona from the session id, so
// the same session always maps to the same identity even before the first
// save lands.
func PickPersona(sessionID string) session.Persona {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return personas[int(h.Sum32())%len(personas)]
}
