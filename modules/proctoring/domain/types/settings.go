package types

import (
	"strings"
)

type ProctoringMode int

const (
	ProctoringDisabled ProctoringMode = 0
	ProctoringEnabled  ProctoringMode = 1
)

type ApplicationType string

const (
	ApplicationBrowser ApplicationType = "browser"
	ApplicationTray    ApplicationType = "tray"
	ApplicationDesktop ApplicationType = "desktop"
)

// ProctoringSettings is the per-quiz proctoring record. A persisted record
// implies proctoring is enabled: saving with ProctoringDisabled deletes the
// record instead.
type ProctoringSettings struct {
	QuizID   int64
	ModuleID int64
	QuizName string

	Proctoring  ProctoringMode
	Application ApplicationType

	MainCameraRecord   bool
	SecondCameraRecord bool
	ScreenShareRecord  bool
	PhotoHeadIdentity  bool
	IDVerification     bool
	DisplayChecks      bool
	HDCPChecks         bool
	ContentProtect     bool
	FullscreenMode     bool
	ExtensionDetector  bool
	FocusDetector      bool
}

func DefaultSettings(quizID int64, moduleID int64) ProctoringSettings {
	return ProctoringSettings{
		QuizID:            quizID,
		ModuleID:          moduleID,
		Proctoring:        ProctoringDisabled,
		Application:       ApplicationBrowser,
		MainCameraRecord:  true,
		ScreenShareRecord: true,
		PhotoHeadIdentity: true,
		DisplayChecks:     true,
		ExtensionDetector: true,
		FullscreenMode:    true,
		FocusDetector:     true,
	}
}

// Validate returns a field-name-to-message map; empty means valid.
func (s ProctoringSettings) Validate() map[string]string {
	errs := map[string]string{}
	if s.QuizID <= 0 {
		errs["quiz_id"] = "quiz_id must be positive"
	}
	if s.ModuleID <= 0 {
		errs["module_id"] = "module_id must be positive"
	}
	switch s.Proctoring {
	case ProctoringDisabled, ProctoringEnabled:
	default:
		errs["proctoring"] = "proctoring must be 0 or 1"
	}
	switch s.Application {
	case ApplicationBrowser, ApplicationTray, ApplicationDesktop:
	default:
		errs["application"] = "application must be one of browser, tray, desktop"
	}
	return errs
}

func ParseApplicationType(raw string) (ApplicationType, bool) {
	switch ApplicationType(strings.ToLower(strings.TrimSpace(raw))) {
	case ApplicationBrowser:
		return ApplicationBrowser, true
	case ApplicationTray:
		return ApplicationTray, true
	case ApplicationDesktop:
		return ApplicationDesktop, true
	}
	return "", false
}

// Toggles returns the feature toggle set keyed by field name, the shape
// embedded into vendor session payloads.
func (s ProctoringSettings) Toggles() map[string]bool {
	return map[string]bool{
		"main_camera_record":   s.MainCameraRecord,
		"second_camera_record": s.SecondCameraRecord,
		"screen_share_record":  s.ScreenShareRecord,
		"photo_head_identity":  s.PhotoHeadIdentity,
		"id_verification":      s.IDVerification,
		"display_checks":       s.DisplayChecks,
		"hdcp_checks":          s.HDCPChecks,
		"content_protect":      s.ContentProtect,
		"fullscreen_mode":      s.FullscreenMode,
		"extension_detector":   s.ExtensionDetector,
		"focus_detector":       s.FocusDetector,
	}
}
