package vendorapi

import (
	"net/http"
	"net/url"
)

// Command describes one outbound call to the proctoring vendor API. The
// client depends only on this interface, never on concrete payloads.
type Command interface {
	Path() string
	Method() string
	Query() url.Values
	Headers() http.Header
	Body() any
}

type UserTraits struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type StudentPayload struct {
	ExternalID int64      `json:"external_id"`
	User       UserTraits `json:"user"`
}

type StudentCommand struct {
	Student StudentPayload
}

func (c StudentCommand) Path() string         { return "/students" }
func (c StudentCommand) Method() string       { return http.MethodPost }
func (c StudentCommand) Query() url.Values    { return nil }
func (c StudentCommand) Headers() http.Header { return nil }
func (c StudentCommand) Body() any            { return c.Student }

type GroupPayload struct {
	ExternalID  int64  `json:"external_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type GroupCommand struct {
	Group GroupPayload
}

func (c GroupCommand) Path() string         { return "/groups" }
func (c GroupCommand) Method() string       { return http.MethodPost }
func (c GroupCommand) Query() url.Values    { return nil }
func (c GroupCommand) Headers() http.Header { return nil }
func (c GroupCommand) Body() any            { return c.Group }

type AssignmentSettings struct {
	ProctoringSettings map[string]bool `json:"proctoring_settings"`
	ExitURL            string          `json:"exit_url"`
}

type AssignmentPayload struct {
	Type         string             `json:"type"`
	Application  string             `json:"application"`
	Name         string             `json:"name"`
	ExternalID   int64              `json:"external_id"`
	ExternalURL  string             `json:"external_url"`
	IsProctoring bool               `json:"is_proctoring"`
	Settings     AssignmentSettings `json:"settings"`
}

type AssignmentCommand struct {
	Assignment AssignmentPayload
}

func (c AssignmentCommand) Path() string         { return "/assignments" }
func (c AssignmentCommand) Method() string       { return http.MethodPost }
func (c AssignmentCommand) Query() url.Values    { return nil }
func (c AssignmentCommand) Headers() http.Header { return nil }
func (c AssignmentCommand) Body() any            { return c.Assignment }

type SessionData struct {
	Query map[string]string `json:"query"`
}

// SessionPayload is the composite create-session request: student, group
// and assignment are provisioned by the vendor in one call.
type SessionPayload struct {
	Student     StudentPayload    `json:"student"`
	Group       GroupPayload      `json:"group"`
	Assignment  AssignmentPayload `json:"assignment"`
	SessionData SessionData       `json:"session_data"`
}

type SessionCommand struct {
	Session SessionPayload
}

func (c SessionCommand) Path() string         { return "/external-session/assignment.json" }
func (c SessionCommand) Method() string       { return http.MethodPost }
func (c SessionCommand) Query() url.Values    { return nil }
func (c SessionCommand) Headers() http.Header { return nil }
func (c SessionCommand) Body() any            { return c.Session }
