// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Plan is the conversion path chosen from the current and target filesystem.
// It is computed once per request and not re-evaluated mid-flight.
type Plan string

const (
	// PlanNoOp means the device is already in an equivalent format.
	PlanNoOp Plan = "noop"
	// PlanInPlace rewrites filesystem metadata without erasing data (FAT -> NTFS).
	PlanInPlace Plan = "in-place"
	// PlanBackupRestore copies data off, reformats, and copies it back.
	PlanBackupRestore Plan = "backup-reformat-restore"
)

// Destructive reports whether the plan erases the volume.
func (p Plan) Destructive() bool {
	return p == PlanBackupRestore
}

// Step names a checkpoint in the conversion pipeline. Progress is reported
// per step, not per byte.
type Step string

const (
	StepValidate  Step = "validate"
	StepPlan      Step = "plan"
	StepCapacity  Step = "capacity"
	StepStage     Step = "stage"
	StepBackup    Step = "backup"
	StepUnmount   Step = "unmount"
	StepFormat    Step = "format"
	StepWaitReady Step = "wait-ready"
	StepRestore   Step = "restore"
	StepConvert   Step = "convert"
	StepCleanup   Step = "cleanup"
	StepDone      Step = "done"
)

// stepPercent maps each step to a coarse completion percentage.
var stepPercent = map[Step]int{
	StepValidate:  0,
	StepPlan:      5,
	StepCapacity:  10,
	StepStage:     15,
	StepBackup:    20,
	StepUnmount:   45,
	StepConvert:   50,
	StepFormat:    55,
	StepWaitReady: 65,
	StepRestore:   70,
	StepCleanup:   95,
	StepDone:      100,
}

// Percent returns the coarse completion percentage at the start of s.
func (s Step) Percent() int {
	return stepPercent[s]
}

// Progress is a coarse progress notification.
type Progress struct {
	Step    Step `json:"step"`
	Percent int  `json:"percent"`
}

// ProgressAt builds the Progress value for step s.
func ProgressAt(s Step) Progress {
	return Progress{Step: s, Percent: s.Percent()}
}

// Decision is the outcome of planning: where the device is, what it holds,
// and which path will be taken.
type Decision struct {
	Device string     `json:"device" yaml:"device"`
	Source Filesystem `json:"source" yaml:"source"`
	Target Filesystem `json:"target" yaml:"target"`
	Plan   Plan       `json:"plan" yaml:"plan"`
}
