// Package output provides functions to print messages with optional color formatting
package output

import (
	"fmt"
	"strings"

	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed
)

const timeFormat = "2006-01-02 15:04:05"

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	if color.NoColor || isColorDisabled {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled)
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl, a...)
	}
	return maybeColorize(kind, tmpl, a...)
}

func fprint(cmd *cobra.Command, kind color.Attribute, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(kind, tmpl, a...))
	return err
}

// FprintPlain writes an uncolored message to the command's output
func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Plain, tmpl, a...)
}

func FprintSuccess(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Success, tmpl, a...)
}

func FprintWarning(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Warning, tmpl, a...)
}

func FprintError(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Error, tmpl, a...)
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignRight, tw.AlignLeft}},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

var fieldTitles = map[string]string{
	"domain":            "Domain",
	"user":              "User",
	"secret_key":        "Secret Key",
	"state":             "State",
	"created_at":        "Created At",
	"updated_at":        "Updated At",
	"last_connected_at": "Last Connected",
}

func projectField(p *domain.Project, field string) string {
	switch field {
	case "domain":
		return p.Domain
	case "user":
		return p.OwnerUsername()
	case "secret_key":
		return p.SecretKey
	case "state":
		return p.State.String()
	case "created_at":
		return p.CreatedAt.Format(timeFormat)
	case "updated_at":
		return p.UpdatedAt.Format(timeFormat)
	case "last_connected_at":
		return p.LastConnectedStr()
	}
	return ""
}

// PrintProjectDetails renders one project as a two-column table. Only the
// fields the policy shows in listings are included, plus the ID and, while
// connected, the upstream port.
func PrintProjectDetails(p *domain.Project, policy domain.ViewPolicy) (string, error) {
	data := [][]string{{"ID", p.ID.String()}}
	for _, field := range policy.ListFields() {
		data = append(data, []string{fieldTitles[field], projectField(p, field)})
	}
	if p.State == domain.ConnectionStateConnected {
		data = append(data, []string{"Port", fmt.Sprintf("%d", p.Port)})
	}

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing project details table: %w", err)
	}
	return table, nil
}

func PrintProjectList(projects []*domain.Project, policy domain.ViewPolicy) (string, error) {
	if len(projects) == 0 {
		return PrintMessage(Plain, "No projects found.\n"), nil
	}

	fields := policy.ListFields()
	header := []string{"ID"}
	for _, field := range fields {
		header = append(header, fieldTitles[field])
	}

	var data [][]string
	for _, p := range projects {
		row := []string{p.ID.String()}
		for _, field := range fields {
			row = append(row, projectField(p, field))
		}
		data = append(data, row)
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing project list table: %w", err)
	}
	return table, nil
}

func PrintUserList(users []*domain.User) (string, error) {
	if len(users) == 0 {
		return PrintMessage(Plain, "No users found.\n"), nil
	}

	var data [][]string
	for _, u := range users {
		role := "user"
		if u.IsSuperuser {
			role = "superuser"
		}
		data = append(data, []string{
			u.ID.String(),
			u.Username,
			role,
			u.CreatedAt.Format(timeFormat),
		})
	}

	table, err := PrintTable([]string{"ID", "Username", "Role", "Created At"}, data)
	if err != nil {
		return "", fmt.Errorf("printing user list table: %w", err)
	}
	return table, nil
}

// PrintResults renders per-item outcomes of a batch operation. It returns
// the number of failed items.
func PrintResults(results []project.ItemResult) (string, int) {
	var b strings.Builder
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			b.WriteString(PrintMessage(Error, "FAILED %s: %v\n", r.Name, r.Err))
			continue
		}
		b.WriteString(PrintMessage(Success, "OK     %s\n", r.Name))
	}
	return b.String(), failed
}

// NoColor is a flag that can be used to disable colored output in the CLI.
var NoColor = &noColorFlag{set: false}

type noColorFlag struct {
	set bool
}

func (f *noColorFlag) Set(value string) error {
	// This is a boolean flag, so we ignore the value and just mark it as set
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	if f.set {
		return "true"
	}
	return "false"
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the --no-color flag was explicitly set
func (f *noColorFlag) IsSet() bool {
	return f.set
}

// IsBoolFlag tells pflag this is a boolean flag (no argument required)
func (f *noColorFlag) IsBoolFlag() bool {
	return true
}
