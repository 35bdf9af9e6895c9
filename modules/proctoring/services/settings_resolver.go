package services

import (
	"fmt"
	"strings"

	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
)

// FieldPrefix is the namespace the host form uses for this module's
// fields; FilterSettings strips it from persisted keys.
const FieldPrefix = "invigilo_"

// ModeField is the stripped name of the proctoring mode selector.
const ModeField = "proctoring"

var ErrUnknownSetting = fmt.Errorf("proctoring: unknown setting")

// SettingNode is one field in the capability tree. Children are only
// relevant while their parent is enabled; both visibility rules and
// capability requirements follow the structure.
type SettingNode struct {
	Name     string
	Children []SettingNode
}

// CapabilityMap maps each proctoring mode to the fields that are legal
// under it. Built once, immutable afterwards.
type CapabilityMap map[types.ProctoringMode][]SettingNode

func DefaultCapabilityMap() CapabilityMap {
	return CapabilityMap{
		types.ProctoringDisabled: nil,
		types.ProctoringEnabled: {
			{Name: "application"},
			{Name: "main_camera_record"},
			{Name: "screen_share_record"},
			{Name: "second_camera_record"},
			{Name: "photo_head_identity"},
			{Name: "id_verification"},
			{Name: "display_checks"},
			{Name: "hdcp_checks"},
			{Name: "content_protect"},
			{Name: "extension_detector"},
			{Name: "fullscreen_mode"},
			{Name: "focus_detector"},
		},
	}
}

// CapabilityName derives the capability guarding a field. The mapping is
// deterministic so policy files can be written without a registry.
func CapabilityName(field string) string {
	return "manage_" + field
}

// ConfigureCapability gates access to the whole settings section.
var ConfigureCapability = CapabilityName(ModeField)

type SettingsResolver struct {
	capMap CapabilityMap
}

func NewSettingsResolver() *SettingsResolver {
	return &SettingsResolver{capMap: DefaultCapabilityMap()}
}

func NewSettingsResolverWithMap(m CapabilityMap) *SettingsResolver {
	return &SettingsResolver{capMap: m}
}

// VisibleFields returns every field relevant under the mode, nested
// children included, in declaration order.
func (r *SettingsResolver) VisibleFields(mode types.ProctoringMode) []string {
	return collectFields(r.capMap[mode])
}

func collectFields(nodes []SettingNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Name)
		out = append(out, collectFields(n.Children)...)
	}
	return out
}

const (
	HideConditionEq  = "eq"
	HideConditionNeq = "neq"
)

// HideRule hides Field when DependentField compares to DependentValue
// under Condition.
type HideRule struct {
	Field          string
	DependentField string
	Condition      string
	DependentValue string
}

// HideRules derives the conditional-visibility rules from the capability
// map: every field hides when the mode differs from its own mode, and
// every child additionally hides while its parent is 0.
func (r *SettingsResolver) HideRules() map[string][]HideRule {
	rules := map[string][]HideRule{}
	for _, mode := range []types.ProctoringMode{types.ProctoringDisabled, types.ProctoringEnabled} {
		modeValue := fmt.Sprintf("%d", int(mode))
		for _, node := range r.capMap[mode] {
			appendHideRules(rules, node, modeValue, "")
		}
	}
	return rules
}

func appendHideRules(rules map[string][]HideRule, node SettingNode, modeValue, parent string) {
	rules[node.Name] = append(rules[node.Name], HideRule{
		Field:          node.Name,
		DependentField: ModeField,
		Condition:      HideConditionNeq,
		DependentValue: modeValue,
	})
	if parent != "" {
		rules[node.Name] = append(rules[node.Name], HideRule{
			Field:          node.Name,
			DependentField: parent,
			Condition:      HideConditionEq,
			DependentValue: "0",
		})
	}
	for _, child := range node.Children {
		appendHideRules(rules, child, modeValue, node.Name)
	}
}

// FilterSettings reduces an arbitrary field-keyed record to the canonical
// persisted shape: only this module's fields survive, fields outside the
// submitted mode's allowed set are nulled, and the namespace prefix is
// stripped. Filtering an already filtered record returns it unchanged.
func (r *SettingsResolver) FilterSettings(raw map[string]any) map[string]any {
	known := map[string]bool{ModeField: true}
	for _, nodes := range r.capMap {
		for _, f := range collectFields(nodes) {
			known[f] = true
		}
	}

	filtered := map[string]any{}
	for key, value := range raw {
		name := key
		if strings.HasPrefix(key, FieldPrefix) {
			name = strings.TrimPrefix(key, FieldPrefix)
		} else if !known[name] {
			// Bare keys outside the namespace belong to the host form.
			continue
		}
		if !known[name] {
			continue
		}
		filtered[name] = value
	}

	modeRaw, ok := filtered[ModeField]
	if !ok {
		return filtered
	}
	allowed := map[string]bool{}
	if mode, ok := modeFromValue(modeRaw); ok {
		for _, f := range collectFields(r.capMap[mode]) {
			allowed[f] = true
		}
	}
	for name := range filtered {
		if name == ModeField {
			continue
		}
		if !allowed[name] {
			filtered[name] = nil
		}
	}
	return filtered
}

func modeFromValue(v any) (types.ProctoringMode, bool) {
	switch t := v.(type) {
	case types.ProctoringMode:
		return t, true
	case int:
		return types.ProctoringMode(t), true
	case int64:
		return types.ProctoringMode(t), true
	case float64:
		return types.ProctoringMode(int(t)), true
	case string:
		switch strings.TrimSpace(t) {
		case "0":
			return types.ProctoringDisabled, true
		case "1":
			return types.ProctoringEnabled, true
		}
	}
	return 0, false
}

// RequiredCapabilities returns the capability set a caller must hold to
// edit the field: the field's own capability plus every structural
// ancestor's, nearest first. Unknown fields fail rather than returning an
// empty set.
func (r *SettingsResolver) RequiredCapabilities(field string) ([]string, error) {
	for _, nodes := range r.capMap {
		if path, ok := findFieldPath(nodes, field, nil); ok {
			caps := make([]string, 0, len(path))
			for i := len(path) - 1; i >= 0; i-- {
				caps = append(caps, CapabilityName(path[i]))
			}
			return caps, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, field)
}

func findFieldPath(nodes []SettingNode, field string, ancestors []string) ([]string, bool) {
	for _, n := range nodes {
		if n.Name == field {
			return append(ancestors, n.Name), true
		}
		if path, ok := findFieldPath(n.Children, field, append(ancestors, n.Name)); ok {
			return path, true
		}
	}
	return nil, false
}
