package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/engine"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Aliases: []string{"rules", "automation"},
		Short:   "Manage automation rules",
		Long: `Manage automation rules. A rule watches for one transition and runs its
actions against the task that made it.

Triggers:
  status_change     status moved to the value (optionally --from a status)
  priority_change   priority moved to the value
  tag_added         the tag was added (also matches new tasks carrying it)
  date_reached      start_date or end_date (value) is today or past, once a day

Actions (--action type[:value][;key=value...]):
  change_status     value = status; target=dependents cascades to dependents
  change_priority   value = priority
  add_tag           value = tag
  move_project      value = project ID
  create_task       value = title ({task} is the trigger task's title);
                    priority=, tags=a,b, project=same|<id>, depends_on_trigger=true
  send_notification value = message; title=, severity=info|success|warning|critical`,
	}
	cmd.AddCommand(newRuleAddCmd())
	cmd.AddCommand(newRuleListCmd())
	cmd.AddCommand(newRuleShowCmd())
	cmd.AddCommand(newRuleSetActiveCmd("enable", true))
	cmd.AddCommand(newRuleSetActiveCmd("disable", false))
	cmd.AddCommand(newRuleRmCmd())
	cmd.AddCommand(newRuleHistoryCmd())
	return cmd
}

func newRuleAddCmd() *cobra.Command {
	var (
		file        string
		name        string
		description string
		trigger     string
		from        string
		projectID   string
		actions     []string
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule from flags or a YAML file",
		Example: `  taskgraph rule add --name "Tag finished" --trigger status_change:done --action add_tag:DONE
  taskgraph rule add --trigger tag_added:review --action "create_task:Review {task};priority=high;depends_on_trigger=true"
  taskgraph rule add --file rules.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rules []automation.Rule
			if file != "" {
				loaded, err := readRuleFile(file)
				if err != nil {
					return err
				}
				rules = loaded
			} else {
				r, err := ruleFromFlags(name, description, trigger, from, projectID, actions)
				if err != nil {
					return err
				}
				r.IsActive = !inactive
				rules = []automation.Rule{r}
			}

			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				var created []*automation.Rule
				for _, r := range rules {
					added, err := eng.Rules().RegisterRule(cmd.Context(), r)
					if err != nil {
						return err
					}
					created = append(created, added)
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), created)
				}
				for _, r := range created {
					info(cmd.OutOrStdout(), "Added rule %s (%s)", r.Name, r.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a rule or a rules: list")
	cmd.Flags().StringVar(&name, "name", "", "rule name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "rule description")
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger as type[:value]")
	cmd.Flags().StringVar(&from, "from", "", "only transitions leaving this status or priority")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "only tasks in this project")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "action as type[:value][;key=value...] (repeatable)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "add the rule disabled")
	return cmd
}

// ruleFromFlags builds a rule from the inline flag syntax.
func ruleFromFlags(name, description, trigger, from, projectID string, actions []string) (automation.Rule, error) {
	if trigger == "" {
		return automation.Rule{}, tgerrors.ErrInvalidInput("trigger", "--trigger or --file is required")
	}
	if len(actions) == 0 {
		return automation.Rule{}, tgerrors.ErrInvalidInput("action", "at least one --action is required")
	}

	typ, value, _ := strings.Cut(trigger, ":")
	r := automation.Rule{
		Name:        name,
		Description: description,
		Trigger: automation.Trigger{
			Type:      automation.TriggerType(strings.TrimSpace(typ)),
			Value:     strings.TrimSpace(value),
			From:      from,
			ProjectID: projectID,
		},
	}
	for _, spec := range actions {
		a, err := parseActionSpec(spec)
		if err != nil {
			return automation.Rule{}, err
		}
		r.Actions = append(r.Actions, a)
	}
	return r, nil
}

// parseActionSpec parses "type[:value][;key=value...]".
func parseActionSpec(spec string) (automation.Action, error) {
	parts := strings.Split(spec, ";")
	typ, value, _ := strings.Cut(parts[0], ":")
	a := automation.Action{
		Type:  automation.ActionType(strings.TrimSpace(typ)),
		Value: strings.TrimSpace(value),
	}
	if a.Type == "" {
		return a, tgerrors.ErrInvalidInput("action", fmt.Sprintf("missing action type in %q", spec))
	}
	for _, kv := range parts[1:] {
		if strings.TrimSpace(kv) == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return a, tgerrors.ErrInvalidInput("action", fmt.Sprintf("parameter %q is not key=value", kv))
		}
		if a.Params == nil {
			a.Params = make(map[string]string)
		}
		a.Params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return a, nil
}

// readRuleFile reads either a single rule document or a document with a
// top-level rules list.
func readRuleFile(path string) ([]automation.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var doc struct {
		Rules []automation.Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Rules) > 0 {
		return doc.Rules, nil
	}

	var single automation.Rule
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, tgerrors.ErrInvalidInput("file", fmt.Sprintf("parse %s: %v", path, err))
	}
	if single.Trigger.Type == "" {
		return nil, tgerrors.ErrInvalidInput("file", fmt.Sprintf("%s holds no rules", path))
	}
	return []automation.Rule{single}, nil
}

func newRuleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				rules := eng.Rules().Rules()
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), rules)
				}
				if len(rules) == 0 {
					info(cmd.OutOrStdout(), "No rules. Add one with: taskgraph rule add --help")
					return nil
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "ID\tNAME\tACTIVE\tTRIGGER\tACTIONS\tFIRED")
				for _, r := range rules {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
						r.ID, truncate(r.Name, 32), yesNo(r.IsActive),
						describeTrigger(r.Trigger), describeActions(r.Actions), r.TriggerCount)
				}
				return w.Flush()
			})
		},
	}
}

func newRuleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show a rule as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				r, err := eng.Rules().Rule(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), r)
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(r); err != nil {
					return fmt.Errorf("encode rule: %w", err)
				}
				return enc.Close()
			})
		},
	}
}

func newRuleSetActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Rules().SetRuleActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Rule %s %sd", args[0], use)
				return nil
			})
		},
	}
}

func newRuleRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <rule-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				if err := eng.Rules().DeleteRule(cmd.Context(), args[0]); err != nil {
					return err
				}
				info(cmd.OutOrStdout(), "Deleted rule %s", args[0])
				return nil
			})
		},
	}
}

func newRuleHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show when each rule last fired",
		Long: `Show firing counts and the last firing time of every rule, most recent
first. Detailed executions are kept in memory while "taskgraph watch" runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(eng *engine.Engine) error {
				rules := eng.Rules().Rules()
				slices.SortStableFunc(rules, func(a, b *automation.Rule) int {
					switch {
					case a.LastTriggeredAt == nil && b.LastTriggeredAt == nil:
						return 0
					case a.LastTriggeredAt == nil:
						return 1
					case b.LastTriggeredAt == nil:
						return -1
					default:
						return b.LastTriggeredAt.Compare(*a.LastTriggeredAt)
					}
				})
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), rules)
				}

				w := newTable(cmd.OutOrStdout())
				_, _ = fmt.Fprintln(w, "RULE\tNAME\tFIRED\tLAST")
				for _, r := range rules {
					last := "never"
					if r.LastTriggeredAt != nil {
						last = r.LastTriggeredAt.Local().Format("2006-01-02 15:04")
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, truncate(r.Name, 32), r.TriggerCount, last)
				}
				return w.Flush()
			})
		},
	}
}

func describeTrigger(t automation.Trigger) string {
	s := string(t.Type)
	if t.Value != "" {
		s += ":" + t.Value
	}
	if t.From != "" {
		s += " from " + t.From
	}
	if t.ProjectID != "" {
		s += " in " + t.ProjectID
	}
	return s
}

func describeActions(actions []automation.Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a.Type)
		if a.Value != "" {
			parts[i] += ":" + a.Value
		}
	}
	return truncate(strings.Join(parts, ", "), 48)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
