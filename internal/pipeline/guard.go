package pipeline

// CanTranslate reports whether the translate stage may be entered.
func CanTranslate(s Snapshot) bool { return s.File != nil }

// CanExtractFeatures reports whether the features stage may be entered.
func CanExtractFeatures(s Snapshot) bool {
	return s.File != nil && s.Translation != nil
}

// CanSynthesizeScope reports whether the scope stage may be entered. An empty
// feature list does not count.
func CanSynthesizeScope(s Snapshot) bool {
	return s.File != nil && s.Features != nil && len(s.Features.Items) > 0
}

// CanEnter dispatches to the guard for stage. Upload is always open.
func CanEnter(stage Stage, s Snapshot) bool {
	switch stage {
	case StageUpload:
		return true
	case StageTranslate:
		return CanTranslate(s)
	case StageFeatures:
		return CanExtractFeatures(s)
	case StageScope:
		return CanSynthesizeScope(s)
	default:
		return false
	}
}

// Redirect returns the stage a caller asking for stage should be shown: the
// stage itself if its guard passes, otherwise the nearest upstream stage that
// may be entered, ending at upload.
func Redirect(stage Stage, s Snapshot) Stage {
	if stage > StageScope {
		stage = StageScope
	}
	for st := stage; st > StageUpload; st-- {
		if CanEnter(st, s) {
			return st
		}
	}
	return StageUpload
}
