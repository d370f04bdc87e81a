package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/engine"
	"github.com/sorengranfeldt/mre/internal/service"
	"github.com/sorengranfeldt/mre/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// logError logs err with the server's correlation id and returns it.
func logError(err error, correlation, msg string) error {
	evt := log.Error().Err(err)
	if correlation != "" {
		evt = evt.Str("correlation_id", correlation)
	}
	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		evt = evt.Int("status", apiErr.StatusCode)
	}
	evt.Msg(msg)
	return err
}

func outcomeIcon(o core.RuleOutcome) string {
	switch o {
	case core.OutcomeActed:
		return green("✔")
	case core.OutcomeFailed:
		return red("✖")
	case core.OutcomeNotMet:
		return red("✖")
	default:
		return yellow("•")
	}
}

// printSimulation prints the rule traces, the changes the host received and
// the engine's diagnostics. ruleFilter limits the traces to a single rule.
func printSimulation(out *service.SimulationResult, ruleFilter string, showLogs bool) {
	res := out.Result
	if res == nil {
		res = &core.DispatchResult{}
	}

	fmt.Printf("\n%s for subject %s (type: %s, correlation: %s)\n",
		bold("Evaluation Trace"),
		bold(res.SubjectID),
		res.SubjectType,
		faint(res.CorrelationID))

	fmt.Println(faint("---------------------------------------------------"))

	for _, tr := range res.Rules {
		if ruleFilter != "" && !strings.EqualFold(tr.Rule, ruleFilter) {
			continue
		}

		target := tr.TargetSystem
		if target == "" {
			target = "-"
		}
		fmt.Printf("%s Rule: %s %s\n", outcomeIcon(tr.Outcome), bold(tr.Rule),
			faint(fmt.Sprintf("(%s -> %s)", tr.Action, target)))
		if tr.Reason != "" {
			fmt.Printf("  %s: %s\n", tr.Outcome, faint(tr.Reason))
		} else {
			fmt.Printf("  %s\n", tr.Outcome)
		}

		for _, tree := range tr.Conditions {
			var lines []core.ConditionResult
			engine.FlattenConditionResult(&lines, tree, 0)
			printConditionLines(lines)
		}
		fmt.Println()
	}

	fmt.Println(faint("---------------------------------------------------"))
	if len(out.Changes) == 0 {
		fmt.Println("Changes: none")
	} else {
		fmt.Println(bold("Changes:"))
		printChanges(out.Changes)
	}

	if showLogs && len(out.Logs) > 0 {
		fmt.Println(bold("\nDiagnostics:"))
		for _, e := range out.Logs {
			level := e.Level
			switch level {
			case "warn":
				level = yellow(level)
			case "error":
				level = red(level)
			default:
				level = faint(level)
			}
			fmt.Printf("  %-5s %s\n", level, e.Message)
		}
	}

	if res.Stopped {
		fmt.Println(yellow("\nPass stopped after DeprovisionAll."))
	}
	if out.Error != "" {
		fmt.Printf("\nResult: %s (%s)\n", bold(red("failed")), out.Error)
	} else {
		fmt.Printf("\nResult: %s, %d action(s)\n", bold(green("ok")), len(res.Actions))
	}
	fmt.Println()
}

func printConditionLines(lines []core.ConditionResult) {
	for _, cond := range lines {
		// calculate depth based on leading spaces
		trimmed := strings.TrimLeft(cond.Expression, " ")
		indent := strings.Repeat(" ", len(cond.Expression)-len(trimmed))

		// detect if this is a label
		isLogicGate := strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")

		condIcon := red("✖")
		if cond.Matched {
			condIcon = green("✔")
		}

		if isLogicGate {
			fmt.Printf("    %s%s %s\n", indent, condIcon, cyan(trimmed))
		} else {
			fmt.Printf("    %s%s %s\n", indent, condIcon, trimmed)
		}

		if cond.Reason != "" {
			reason := cond.Reason
			if cond.Matched {
				reason = faint(reason)
			} else {
				reason = yellow(reason)
			}
			fmt.Printf("%s      ↳ %s\n", indent, reason)
		}
	}
}
