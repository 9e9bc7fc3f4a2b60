package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// LinkConflict records a rake link whose summary path could not be reconciled
// with the chain derived from the detailed timetable.
type LinkConflict struct {
	Cycle   *RakeCycle
	WTTPath []string
}

// Timetable is the parsed working timetable: every station and service on the
// corridor, plus the rake links reconciled from the summary workbook.
type Timetable struct {
	Stations map[string]*Station

	UpServices       []*Service
	DownServices     []*Service
	SuburbanServices []*Service

	RakeCycles       []*RakeCycle
	ConflictingLinks []LinkConflict

	// EventsByStation indexes every station event by station name, in the
	// order services were registered. Gap detection reads from here.
	EventsByStation map[string][]*StationEvent

	// chains are the service paths derived by following LinkedTo edges
	// through the detailed timetable.
	chains [][]*Service

	originalAC map[string]bool
}

// New creates an empty timetable.
func New() *Timetable {
	return &Timetable{
		Stations:        make(map[string]*Station),
		EventsByStation: make(map[string][]*StationEvent),
	}
}

// AllServices returns up and down services in registration order.
func (tt *Timetable) AllServices() []*Service {
	out := make([]*Service, 0, len(tt.UpServices)+len(tt.DownServices))
	out = append(out, tt.UpServices...)
	out = append(out, tt.DownServices...)
	return out
}

// IsolateSuburbanServices selects the services referenced by any rake link in
// the summary workbook. Central-railway through services that no link claims
// are left out of all further processing.
func (tt *Timetable) IsolateSuburbanServices() []*Service {
	suburbanIDs := make(map[string]bool)
	for _, rc := range tt.RakeCycles {
		for _, sid := range rc.ServiceIDs {
			suburbanIDs[sid] = true
		}
	}

	var suburban []*Service
	for _, s := range tt.AllServices() {
		for _, sid := range s.IDs {
			if suburbanIDs[sid] {
				suburban = append(suburban, s)
				break
			}
		}
	}

	log.Debug("isolated suburban services",
		"suburban", len(suburban), "total", len(tt.AllServices()))
	tt.SuburbanServices = suburban
	return suburban
}

// buildChains derives rake-cycle paths from the timetable itself. Services
// form a digraph where an edge u->v means u is reversed as v; chains are the
// connected components followed from head nodes. A valid timetable has no
// cycles in these components.
func (tt *Timetable) buildChains(services []*Service) {
	idMap := make(map[string]*Service)
	for _, s := range services {
		for _, sid := range s.IDs {
			idMap[sid] = s
		}
	}

	next := make(map[string]string)
	prev := make(map[string]string)
	for _, s := range services {
		if s.LinkedTo == "" || len(s.IDs) == 0 {
			continue
		}
		target := strings.TrimSpace(s.LinkedTo)
		if _, ok := idMap[target]; !ok {
			continue
		}
		next[s.IDs[0]] = target
		prev[target] = s.IDs[0]
	}

	visited := make(map[string]bool)
	for _, s := range services {
		if len(s.IDs) == 0 {
			continue
		}
		sid := s.IDs[0]
		if visited[sid] {
			continue
		}
		if _, hasPrev := prev[sid]; hasPrev {
			continue // not a chain head
		}
		if _, hasNext := next[sid]; !hasNext {
			continue // isolated node
		}

		var chain []*Service
		for sid != "" && !visited[sid] {
			svc, ok := idMap[sid]
			if !ok {
				break
			}
			visited[sid] = true
			chain = append(chain, svc)
			sid = next[sid]
		}
		if len(chain) > 0 {
			tt.chains = append(tt.chains, chain)
		}
	}
}

// repairPath reconstructs a cycle's service path from its summary ids when no
// timetable-derived chain starts at the same service. The summary workbook is
// treated as the source of truth; links referencing services the timetable
// never defines are marked invalid instead.
func (tt *Timetable) repairPath(rc *RakeCycle) ([]*Service, error) {
	log.Info("repairing service path", "link", rc.LinkName)

	if len(rc.UndefinedIDs) > 0 {
		log.Debug("link references services missing from the timetable, discarding",
			"link", rc.LinkName, "missing", rc.UndefinedIDs)
		rc.Status = LinkInvalid
		return nil, nil
	}

	byID := make(map[string]*Service)
	for _, s := range tt.SuburbanServices {
		for _, sid := range s.IDs {
			byID[sid] = s
		}
	}

	path := make([]*Service, 0, len(rc.ServiceIDs))
	for _, sid := range rc.ServiceIDs {
		svc, ok := byID[sid]
		if !ok {
			return nil, fmt.Errorf("service %s not found for link %s", sid, rc.LinkName)
		}
		path = append(path, svc)
	}
	return path, nil
}

// GenerateRakeCycles reconciles the summary-sheet rake links against the
// chains derived from the detailed timetable, repairs or discards mismatched
// links, computes per-cycle distance and duration, and assigns rakes.
// Station events must already be populated on the suburban services.
func (tt *Timetable) GenerateRakeCycles() error {
	sort.SliceStable(tt.SuburbanServices, func(i, j int) bool {
		return tt.SuburbanServices[i].PrimaryID() < tt.SuburbanServices[j].PrimaryID()
	})

	tt.buildChains(tt.SuburbanServices)
	log.Debug("derived service chains from timetable", "chains", len(tt.chains))

	var invalid []*RakeCycle
	for _, rc := range tt.RakeCycles {
		for _, chain := range tt.chains {
			if len(rc.ServiceIDs) > 0 && rc.ServiceIDs[0] == chain[0].PrimaryID() {
				rc.ServicePath = chain
			}
		}
		if rc.ServicePath == nil {
			log.Warn("rake link does not match any timetable-derived chain",
				"link", rc.LinkName)
			path, err := tt.repairPath(rc)
			if err != nil {
				return err
			}
			if rc.Status == LinkInvalid {
				invalid = append(invalid, rc)
			}
			rc.ServicePath = path
		}
	}
	tt.removeCycles(invalid)

	log.Debug("rake cycles after path repair", "cycles", len(tt.RakeCycles))

	tt.validateCycles()

	log.Debug("rake cycles after validation",
		"cycles", len(tt.RakeCycles), "conflicts", len(tt.ConflictingLinks))

	for _, rc := range tt.RakeCycles {
		for _, svc := range rc.ServicePath {
			if len(svc.Events) == 0 {
				return fmt.Errorf("service %s in link %s has no events",
					svc.IDString(), rc.LinkName)
			}
			first, last := svc.FirstEvent(), svc.LastEvent()
			svc.InitStation = tt.Stations[first.AtStation]
			svc.FinalStation = tt.Stations[last.AtStation]

			svc.ComputeLengthKm()
			rc.LengthKm += svc.LengthKm
			svc.ComputeDurationMinutes()
			rc.DurationMinutes += svc.DurationMinutes
		}
	}

	tt.assignRakes()
	tt.StoreOriginalACStates()
	return nil
}

// validateCycles removes rake links whose summary path disagrees with the
// timetable-derived chain. Trailing empty (ETY) services missing from the
// chain are tolerated: up to two may be dropped before a link counts as a
// conflict.
func (tt *Timetable) validateCycles() {
	log.Debug("removing inexact rake-cycle matches")

	var conflicts []LinkConflict
	for _, rc := range tt.RakeCycles {
		summaryPath := rc.ServiceIDs
		wttPath := make([]string, 0, len(rc.ServicePath))
		for _, svc := range rc.ServicePath {
			wttPath = append(wttPath, svc.PrimaryID())
		}

		if equalPaths(wttPath, summaryPath) {
			continue
		}
		n := len(summaryPath)
		if n >= 1 && equalPaths(summaryPath[:n-1], wttPath) &&
			strings.Contains(summaryPath[n-1], "ETY") {
			continue
		}
		if n >= 2 && equalPaths(summaryPath[:n-2], wttPath) &&
			strings.Contains(summaryPath[n-2], "ETY") &&
			strings.Contains(summaryPath[n-1], "ETY") {
			continue
		}
		conflicts = append(conflicts, LinkConflict{Cycle: rc, WTTPath: wttPath})
	}

	tt.ConflictingLinks = append(tt.ConflictingLinks, conflicts...)
	removed := make([]*RakeCycle, 0, len(conflicts))
	for _, c := range conflicts {
		removed = append(removed, c.Cycle)
	}
	tt.removeCycles(removed)
}

func (tt *Timetable) removeCycles(remove []*RakeCycle) {
	if len(remove) == 0 {
		return
	}
	drop := make(map[*RakeCycle]bool, len(remove))
	for _, rc := range remove {
		drop[rc] = true
	}
	kept := tt.RakeCycles[:0]
	for _, rc := range tt.RakeCycles {
		if !drop[rc] {
			kept = append(kept, rc)
		}
	}
	tt.RakeCycles = kept
}

// assignRakes gives each cycle a physical rake: AC if any service in the
// path needs an AC rake, sized by the first service carrying a size
// requirement.
func (tt *Timetable) assignRakes() {
	for i, rc := range tt.RakeCycles {
		rake := NewRake(i)
		for _, svc := range rc.ServicePath {
			if svc.NeedsAC {
				rake.IsAC = true
				break
			}
			if svc.RakeSizeReq > 0 {
				rake.RakeSize = svc.RakeSizeReq
				break
			}
		}
		rc.Rake = rake
	}
}

// StoreOriginalACStates snapshots rake and service AC flags so that what-if
// conversions can be rolled back before re-filtering.
func (tt *Timetable) StoreOriginalACStates() {
	tt.originalAC = make(map[string]bool)
	for _, rc := range tt.RakeCycles {
		if rc.Rake != nil {
			tt.originalAC[rc.LinkName] = rc.Rake.IsAC
		}
		for _, svc := range rc.ServicePath {
			tt.originalAC["svc_"+svc.PrimaryID()] = svc.NeedsAC
		}
	}
}

// ResetACStates restores the snapshot taken by StoreOriginalACStates.
// A timetable without a snapshot is left untouched.
func (tt *Timetable) ResetACStates() {
	if tt.originalAC == nil {
		return
	}
	for _, rc := range tt.RakeCycles {
		if rc.Rake != nil {
			if ac, ok := tt.originalAC[rc.LinkName]; ok {
				rc.Rake.IsAC = ac
			}
		}
		for _, svc := range rc.ServicePath {
			if ac, ok := tt.originalAC["svc_"+svc.PrimaryID()]; ok {
				svc.NeedsAC = ac
			}
		}
	}
}

// CycleByLink returns the cycle for the named link, or nil.
func (tt *Timetable) CycleByLink(name string) *RakeCycle {
	for _, rc := range tt.RakeCycles {
		if rc.LinkName == name {
			return rc
		}
	}
	return nil
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
