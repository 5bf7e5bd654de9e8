package health

// MachineType identifies one of the supported factory machine kinds
type MachineType string

const (
	WeldingRobot          MachineType = "weldingRobot"
	PaintingStation       MachineType = "paintingStation"
	AssemblyLine          MachineType = "assemblyLine"
	QualityControlStation MachineType = "qualityControlStation"
)

// Welding robot parts
const (
	PartErrorRate         = "errorRate"
	PartVibrationLevel    = "vibrationLevel"
	PartElectrodeWear     = "electrodeWear"
	PartShieldingPressure = "shieldingPressure"
	PartWireFeedRate      = "wireFeedRate"
	PartArcStability      = "arcStability"
	PartSeamWidth         = "seamWidth"
	PartCoolingEfficiency = "coolingEfficiency"
)

// Painting station parts
const (
	PartFlowRate         = "flowRate"
	PartPressure         = "pressure"
	PartColorConsistency = "colorConsistency"
	PartNozzleCondition  = "nozzleCondition"
)

// Assembly line parts
const (
	PartAlignmentAccuracy = "alignmentAccuracy"
	PartSpeed             = "speed"
	PartFittingTolerance  = "fittingTolerance"
	PartBeltSpeed         = "beltSpeed"
)

// Quality control station parts
const (
	PartCameraCalibration = "cameraCalibration"
	PartLightIntensity    = "lightIntensity"
	PartSoftwareVersion   = "softwareVersion"
	PartCriteriaSettings  = "criteriaSettings"
)

var displayNames = map[MachineType]string{
	WeldingRobot:          "Welding Robot",
	PaintingStation:       "Painting Station",
	AssemblyLine:          "Assembly Line",
	QualityControlStation: "Quality Control Station",
}

// DisplayName returns the human readable machine name, or the raw identifier
// for machine types outside the known set
func (m MachineType) DisplayName() string {
	if name, ok := displayNames[m]; ok {
		return name
	}
	return string(m)
}

// Known reports whether m is one of the four supported machine types
func (m MachineType) Known() bool {
	_, ok := displayNames[m]
	return ok
}

// PartReading is a single raw reading for a named part
type PartReading struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MachineScores maps machine type to a two-decimal score string
type MachineScores map[MachineType]string

// FactoryScore is the result of scoring every machine present in a request
type FactoryScore struct {
	Factory       string        `json:"factory"`
	MachineScores MachineScores `json:"machineScores"`
}
