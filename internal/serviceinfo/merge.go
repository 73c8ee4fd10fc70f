package serviceinfo

import (
	"smpd/internal/domain"
	"smpd/internal/identifier"
)

// Merge folds submitted into existing and returns the result; neither input
// is modified. Processes match by process identifier and endpoints by
// transport profile: a match is replaced in place, anything new is appended.
// A non-empty submitted extension replaces the existing one.
func Merge(existing, submitted domain.ServiceInformation, processKey func(identifier.Process) string) domain.ServiceInformation {
	out := existing.Clone()
	if submitted.Extension != "" {
		out.Extension = submitted.Extension
	}

	index := make(map[string]int, len(out.Processes))
	for i, p := range out.Processes {
		index[processKey(p.ID)] = i
	}
	for _, sp := range submitted.Processes {
		k := processKey(sp.ID)
		i, ok := index[k]
		if !ok {
			out.Processes = append(out.Processes, mergeProcess(domain.Process{ID: sp.ID}, sp))
			index[k] = len(out.Processes) - 1
			continue
		}
		out.Processes[i] = mergeProcess(out.Processes[i], sp)
	}
	return out
}

func mergeProcess(existing, submitted domain.Process) domain.Process {
	out := existing.Clone()
	if submitted.Extension != "" {
		out.Extension = submitted.Extension
	}
	index := make(map[string]int, len(out.Endpoints))
	for i, e := range out.Endpoints {
		index[e.TransportProfile] = i
	}
	for _, e := range submitted.Endpoints {
		if i, ok := index[e.TransportProfile]; ok {
			out.Endpoints[i] = e
			continue
		}
		out.Endpoints = append(out.Endpoints, e)
		index[e.TransportProfile] = len(out.Endpoints) - 1
	}
	return out
}
