package types

import (
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/health"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
)

// Machines is the request shape: machine type -> part name -> raw reading
type Machines map[health.MachineType]map[string]health.Reading

// MachineHealthRequest is the body of POST /machine-health. When User is
// set the result is also appended to that user's history.
type MachineHealthRequest struct {
	Machines Machines `json:"machines" binding:"required"`
	User     string   `json:"user,omitempty"`
}

// RecordRequest is the body of POST /machine. Both fields are required.
type RecordRequest struct {
	Machines Machines `json:"machines" binding:"required"`
	User     string   `json:"user" binding:"required"`
}

// FactoryScoreResponse is returned by the scoring routes
type FactoryScoreResponse struct {
	Factory       string               `json:"factory"`
	MachineScores health.MachineScores `json:"machineScores"`
}

// RecordData echoes a recorded snapshot back to the caller
type RecordData struct {
	Machines      map[string]map[string]float64 `json:"machines"`
	Factory       string                        `json:"factory"`
	MachineScores map[string]string             `json:"machineScores"`
}

// RecordResponse is returned by POST /machine
type RecordResponse struct {
	Message string     `json:"message"`
	Data    RecordData `json:"data"`
}

// ClearResponse is returned by DELETE /machine-health
type ClearResponse struct {
	Deleted int `json:"deleted"`
}

// HistoryResponse is the oldest-first snapshot list of a user
type HistoryResponse []storage.Snapshot

// PartInfo describes the reference ranges of one part
type PartInfo struct {
	Name          string       `json:"name"`
	OptimalRange  health.Range `json:"optimalRange"`
	NormalRange   health.Range `json:"normalRange"`
	AbnormalRange health.Range `json:"abnormalRange"`
}

// MachineInfo describes one machine type for the part picker
type MachineInfo struct {
	Type        health.MachineType `json:"type"`
	DisplayName string             `json:"displayName"`
	Parts       []PartInfo         `json:"parts"`
}

// MachinesResponse is returned by GET /machines
type MachinesResponse struct {
	Machines []MachineInfo `json:"machines"`
}

// NewMachinesResponse lists the reference table in machine and part name order
func NewMachinesResponse(table health.ReferenceTable) MachinesResponse {
	machineTypes := table.MachineTypes()
	resp := MachinesResponse{Machines: make([]MachineInfo, 0, len(machineTypes))}

	for _, machineType := range machineTypes {
		info := MachineInfo{
			Type:        machineType,
			DisplayName: machineType.DisplayName(),
		}
		for _, name := range table.Parts(machineType) {
			ranges, _, _ := table.Lookup(machineType, name)
			info.Parts = append(info.Parts, PartInfo{
				Name:          name,
				OptimalRange:  ranges.Optimal,
				NormalRange:   ranges.Normal,
				AbnormalRange: ranges.Abnormal,
			})
		}
		resp.Machines = append(resp.Machines, info)
	}

	return resp
}

// NewRecordResponse builds the POST /machine response for a stored snapshot
func NewRecordResponse(snapshot *storage.Snapshot) RecordResponse {
	return RecordResponse{
		Message: "Recorded part for " + snapshot.User,
		Data: RecordData{
			Machines:      snapshot.Machines,
			Factory:       snapshot.Factory,
			MachineScores: snapshot.MachineScores,
		},
	}
}
