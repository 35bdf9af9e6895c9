package server

import (
	"strconv"
	"strings"

	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/invigilo/invigilo/modules/proctoring/services"
)

func parseBoolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case int64:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true, true
		case "0", "false", "off", "no", "":
			return false, true
		}
	case nil:
		return false, true
	}
	return false, false
}

func parseModeValue(v any) (types.ProctoringMode, bool) {
	switch t := v.(type) {
	case float64:
		return types.ProctoringMode(int(t)), true
	case int:
		return types.ProctoringMode(t), true
	case int64:
		return types.ProctoringMode(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return types.ProctoringMode(n), true
	}
	return 0, false
}

// settingsFromFiltered maps a filtered, namespace-stripped field record
// onto a settings value, starting from the defaults so omitted toggles
// keep their default state. Unparseable values surface as field errors.
func settingsFromFiltered(quizID, moduleID int64, quizName string, filtered map[string]any) (types.ProctoringSettings, map[string]string) {
	rec := types.DefaultSettings(quizID, moduleID)
	rec.QuizName = quizName
	fieldErrs := map[string]string{}

	if v, ok := filtered[services.ModeField]; ok {
		mode, parsed := parseModeValue(v)
		if !parsed {
			fieldErrs[services.ModeField] = "proctoring must be 0 or 1"
		} else {
			rec.Proctoring = mode
		}
	}

	if v, ok := filtered["application"]; ok && v != nil {
		raw, _ := v.(string)
		app, parsed := types.ParseApplicationType(raw)
		if !parsed {
			fieldErrs["application"] = "application must be one of browser, tray, desktop"
		} else {
			rec.Application = app
		}
	}

	toggles := map[string]*bool{
		"main_camera_record":   &rec.MainCameraRecord,
		"second_camera_record": &rec.SecondCameraRecord,
		"screen_share_record":  &rec.ScreenShareRecord,
		"photo_head_identity":  &rec.PhotoHeadIdentity,
		"id_verification":      &rec.IDVerification,
		"display_checks":       &rec.DisplayChecks,
		"hdcp_checks":          &rec.HDCPChecks,
		"content_protect":      &rec.ContentProtect,
		"fullscreen_mode":      &rec.FullscreenMode,
		"extension_detector":   &rec.ExtensionDetector,
		"focus_detector":       &rec.FocusDetector,
	}
	for name, dst := range toggles {
		v, ok := filtered[name]
		if !ok {
			continue
		}
		b, parsed := parseBoolValue(v)
		if !parsed {
			fieldErrs[name] = name + " must be a boolean"
			continue
		}
		*dst = b
	}

	return rec, fieldErrs
}

func settingsResponseBody(rec types.ProctoringSettings) map[string]any {
	body := map[string]any{
		"quiz_id":     rec.QuizID,
		"module_id":   rec.ModuleID,
		"quiz_name":   rec.QuizName,
		"proctoring":  int(rec.Proctoring),
		"application": string(rec.Application),
	}
	for name, on := range rec.Toggles() {
		body[name] = on
	}
	return body
}
