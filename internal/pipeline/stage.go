package pipeline

import (
	"fmt"
	"strings"
)

// Stage is one step of the document workflow. The zero value is the upload
// step, which every other stage ultimately falls back to.
type Stage int

const (
	StageUpload Stage = iota
	StageTranslate
	StageFeatures
	StageScope
)

// ProcessingStages lists the derivation stages in execution order.
var ProcessingStages = []Stage{StageTranslate, StageFeatures, StageScope}

func (s Stage) String() string {
	switch s {
	case StageUpload:
		return "upload"
	case StageTranslate:
		return "translate"
	case StageFeatures:
		return "features"
	case StageScope:
		return "scope"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ParseStage converts a stage name as produced by String back into a Stage.
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "upload":
		return StageUpload, nil
	case "translate":
		return StageTranslate, nil
	case "features":
		return StageFeatures, nil
	case "scope":
		return StageScope, nil
	}
	return StageUpload, fmt.Errorf("unknown stage %q", name)
}
